package snmp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nanoncore/nano-oxc/types"
)

type fakeClient struct {
	vars []gosnmp.SnmpPDU
	err  error
	oids []string
}

func (f *fakeClient) Get(oids []string) (*gosnmp.SnmpPacket, error) {
	f.oids = oids
	if f.err != nil {
		return nil, f.err
	}
	return &gosnmp.SnmpPacket{Variables: f.vars}, nil
}

func newTestProber(t *testing.T, c client) *Prober {
	t.Helper()
	p, err := NewProber(&types.EquipmentConfig{Address: "192.0.2.20"})
	require.NoError(t, err)
	p.client = c
	return p
}

func TestProberSystem(t *testing.T) {
	fake := &fakeClient{vars: []gosnmp.SnmpPDU{
		{Name: "." + OIDSysDescr, Type: gosnmp.OctetString, Value: []byte("Polatis Series 6000")},
		{Name: "." + OIDSysName, Type: gosnmp.OctetString, Value: []byte("oxc-lab-1")},
		{Name: "." + OIDSysUpTime, Type: gosnmp.TimeTicks, Value: uint32(12345)},
	}}
	p := newTestProber(t, fake)

	info, err := p.System(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Polatis Series 6000", info.Descr)
	assert.Equal(t, "oxc-lab-1", info.Name)
	assert.Equal(t, 123450*time.Millisecond, info.Uptime)
	assert.Equal(t, []string{OIDSysDescr, OIDSysName, OIDSysUpTime}, fake.oids)

	status := &types.EquipmentStatus{}
	require.NoError(t, p.Fill(context.Background(), status))
	assert.Equal(t, "oxc-lab-1", status.SysName)
}

func TestProberSystemErrors(t *testing.T) {
	p := newTestProber(t, &fakeClient{err: errors.New("request timeout")})
	_, err := p.System(context.Background())
	require.ErrorContains(t, err, "request timeout")

	p = newTestProber(t, &fakeClient{vars: []gosnmp.SnmpPDU{
		{Name: "." + OIDSysDescr, Type: gosnmp.NoSuchObject},
	}})
	_, err = p.System(context.Background())
	require.ErrorIs(t, err, types.ErrDecode)
}

func TestEnabled(t *testing.T) {
	assert.False(t, Enabled(nil))
	assert.False(t, Enabled(&types.EquipmentConfig{Protocol: types.ProtocolSCPI}))
	assert.True(t, Enabled(&types.EquipmentConfig{Protocol: types.ProtocolSNMP}))
	assert.True(t, Enabled(&types.EquipmentConfig{
		Metadata: map[string]string{"snmp_community": "private"},
	}))
}

func TestNewProberValidation(t *testing.T) {
	_, err := NewProber(nil)
	require.Error(t, err)
	_, err = NewProber(&types.EquipmentConfig{})
	require.Error(t, err)
}
