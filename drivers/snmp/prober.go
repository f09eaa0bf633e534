// Package snmp reads the MIB-II system group of a cross-connect. It is
// used for status reports only; switching always goes through SCPI.
package snmp

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/nanoncore/nano-oxc/types"
	"github.com/nanoncore/nano-oxc/vendors/common"
)

// MIB-II system group
const (
	OIDSysDescr  = "1.3.6.1.2.1.1.1.0"
	OIDSysUpTime = "1.3.6.1.2.1.1.3.0"
	OIDSysName   = "1.3.6.1.2.1.1.5.0"
)

// DefaultPort is the SNMP agent port.
const DefaultPort = 161

// SystemInfo holds the system group values.
type SystemInfo struct {
	Descr  string
	Name   string
	Uptime time.Duration
}

// client is the subset of gosnmp.GoSNMP used by the prober.
type client interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
}

// Prober queries the SNMP agent of a device.
type Prober struct {
	config *types.EquipmentConfig

	mu     sync.Mutex
	snmp   *gosnmp.GoSNMP
	client client
}

// Enabled reports whether config asks for SNMP probing, either through
// the snmp protocol or an snmp_community metadata key.
func Enabled(config *types.EquipmentConfig) bool {
	if config == nil {
		return false
	}
	if config.Protocol == types.ProtocolSNMP {
		return true
	}
	_, ok := common.MetadataString(config.Metadata, "snmp_community")
	return ok
}

// NewProber creates a prober for the agent at config.Address.
func NewProber(config *types.EquipmentConfig) (*Prober, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if config.Address == "" {
		return nil, fmt.Errorf("address is required")
	}
	return &Prober{config: config}, nil
}

// Open creates the SNMP client. Version, community and port come from the
// snmp_version, snmp_community and snmp_port metadata keys.
func (p *Prober) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return nil
	}

	version := gosnmp.Version2c
	switch common.MetadataStringOr(p.config.Metadata, "2c", "snmp_version") {
	case "1":
		version = gosnmp.Version1
	case "3":
		version = gosnmp.Version3
	}

	port := common.MetadataIntOr(p.config.Metadata, DefaultPort, "snmp_port")
	if port <= 0 || port > 65535 {
		port = DefaultPort
	}
	timeout := p.config.Timeout
	if timeout == 0 {
		timeout = types.DefaultTimeout
	}

	g := &gosnmp.GoSNMP{
		Context:   ctx,
		Target:    p.config.Address,
		Port:      uint16(port), //nolint:gosec // validated above
		Community: common.MetadataStringOr(p.config.Metadata, "public", "snmp_community"),
		Version:   version,
		Timeout:   timeout,
		Retries:   1,
	}
	if version == gosnmp.Version3 {
		g.SecurityModel = gosnmp.UserSecurityModel
		g.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 p.config.Username,
			AuthenticationProtocol:   gosnmp.SHA,
			AuthenticationPassphrase: p.config.Password,
			PrivacyProtocol:          gosnmp.AES,
			PrivacyPassphrase:        p.config.Password,
		}
		g.MsgFlags = gosnmp.AuthPriv
	}

	if err := g.Connect(); err != nil {
		return fmt.Errorf("%w: snmp %s:%s: %w", types.ErrNotConnected,
			p.config.Address, strconv.Itoa(port), err)
	}
	p.snmp = g
	p.client = g
	return nil
}

// Close releases the UDP socket.
func (p *Prober) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	if p.snmp != nil && p.snmp.Conn != nil {
		err = p.snmp.Conn.Close()
	}
	p.snmp = nil
	p.client = nil
	return err
}

// System reads sysDescr, sysName and sysUpTime.
func (p *Prober) System(ctx context.Context) (*SystemInfo, error) {
	if err := p.Open(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	c := p.client
	p.mu.Unlock()

	packet, err := c.Get([]string{OIDSysDescr, OIDSysName, OIDSysUpTime})
	if err != nil {
		return nil, fmt.Errorf("SNMP GET failed: %w", err)
	}

	results := make(map[string]interface{}, len(packet.Variables))
	for _, v := range packet.Variables {
		switch v.Type {
		case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.Null:
			continue
		}
		results[v.Name] = v.Value
	}

	info := &SystemInfo{}
	if raw, ok := common.SNMPResult(results, OIDSysDescr); ok {
		info.Descr, _ = common.SNMPString(raw)
	}
	if raw, ok := common.SNMPResult(results, OIDSysName); ok {
		info.Name, _ = common.SNMPString(raw)
	}
	if raw, ok := common.SNMPResult(results, OIDSysUpTime); ok {
		if ticks, ok := common.SNMPUint(raw); ok {
			// TimeTicks are hundredths of a second.
			info.Uptime = time.Duration(ticks) * 10 * time.Millisecond //nolint:gosec // uptime fits
		}
	}
	if info.Descr == "" && info.Name == "" {
		return nil, fmt.Errorf("%w: no system group in SNMP response", types.ErrDecode)
	}
	return info, nil
}

// Fill copies the system group into status.
func (p *Prober) Fill(ctx context.Context, status *types.EquipmentStatus) error {
	info, err := p.System(ctx)
	if err != nil {
		return err
	}
	status.SysDescr = info.Descr
	status.SysName = info.Name
	status.Uptime = info.Uptime
	return nil
}
