package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	oxc "github.com/nanoncore/nano-oxc"
	"github.com/nanoncore/nano-oxc/drivers/mock"
	"github.com/nanoncore/nano-oxc/logger"
	"github.com/nanoncore/nano-oxc/types"
)

// version is overridable at link time:
//
//	go build -ldflags "-X main.version=2.0.0"
var version = "0.1.0" //nolint:gochecknoglobals

// sliceName is the registry name of the slice built from --slice-in/--slice-out.
const sliceName = "cli-slice"

type options struct {
	address   string
	port      int
	vendor    string
	protocol  string
	timeout   time.Duration
	inventory string
	device    string
	sliceIn   []int
	sliceOut  []int
	simulate  bool
	size      int
	verbose   int
	console   bool
	jsonOut   bool
}

// execute parses args and runs one command.
func execute(ctx context.Context, args []string, stdout io.Writer) error {
	o := &options{}
	fs := flag.NewFlagSet("oxcctl", flag.ContinueOnError)

	// ── target ───────────────────────────────────────────────────
	fs.StringVarP(&o.address, "address", "a", "", "Device host or IP address")
	fs.IntVarP(&o.port, "port", "p", types.DefaultSCPIPort, "Device SCPI port")
	fs.StringVar(&o.vendor, "vendor", string(types.VendorPolatis), "Device vendor")
	fs.StringVar(&o.protocol, "protocol", "", "Transport: scpi, ssh or mock")
	fs.DurationVarP(&o.timeout, "timeout", "w", types.DefaultTimeout, "Maximum wait for each response")
	fs.StringVar(&o.inventory, "inventory", "", "Inventory file")
	fs.StringVarP(&o.device, "device", "d", "", "Device or slice name from the inventory")

	// ── slicing ──────────────────────────────────────────────────
	fs.IntSliceVar(&o.sliceIn, "slice-in", nil, "Physical input ports of a slice")
	fs.IntSliceVar(&o.sliceOut, "slice-out", nil, "Physical output ports of a slice")

	// ── simulation ───────────────────────────────────────────────
	fs.BoolVar(&o.simulate, "simulate", false, "Run against a simulated device on a local port")
	fs.IntVar(&o.size, "size", 16, "Inputs and outputs of the simulated device")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&o.verbose, "verbose", "v", "Increase verbosity (repeatable)")
	fs.BoolVar(&o.console, "console", false, "Human readable log output")
	fs.BoolVar(&o.jsonOut, "json", false, "Print results as JSON")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	if err := fs.Parse(args); err != nil {
		return err
	}
	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "oxcctl %s\n", version)
		return nil
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("command required (use --help for usage)")
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", rest[0])
	}
	if (len(o.sliceIn) == 0) != (len(o.sliceOut) == 0) {
		return fmt.Errorf("--slice-in and --slice-out go together")
	}

	format := logger.Auto
	if o.console {
		format = logger.Console
	}
	logger.SetDefault(logger.NewSlog(logger.Options{Level: logger.ParseLevel(o.verbose), Format: format}))

	if o.simulate {
		srv, err := startSimulator(o.size)
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()
		host, port, _ := net.SplitHostPort(srv.Addr())
		o.address = host
		o.port, _ = strconv.Atoi(port)
		o.protocol = string(types.ProtocolSCPI)
		o.vendor = string(types.VendorPolatis)
		o.device = ""
	}

	reg, key, err := o.registry(ctx, fs)
	if err != nil {
		return err
	}
	defer func() { _ = reg.Close() }()

	if len(o.sliceIn) > 0 {
		if _, err := reg.Slice(ctx, sliceName, key, o.sliceIn, o.sliceOut); err != nil {
			return err
		}
		key = sliceName
	}

	return cmd(ctx, reg, key, rest[1:], o, stdout)
}

// registry builds the registry and returns the key of the target device.
// Flags override the environment, which overrides the inventory.
func (o *options) registry(ctx context.Context, fs *flag.FlagSet) (*oxc.Registry, string, error) {
	var opts []oxc.RegistryOption
	var inv *oxc.Inventory
	if o.inventory != "" {
		var err error
		if inv, err = oxc.LoadInventory(o.inventory); err != nil {
			return nil, "", err
		}
		opts = append(opts, oxc.WithInventory(inv))
	}
	reg := oxc.NewRegistry(opts...)

	if o.device != "" && o.address == "" {
		if inv == nil {
			return nil, "", fmt.Errorf("--device needs --inventory")
		}
		if cfg, ok := inv.Device(o.device); ok {
			o.override(cfg, fs)
		}
		return reg, o.device, nil
	}
	if o.address == "" {
		return nil, "", fmt.Errorf("--address, --device or --simulate required")
	}

	cfg := &types.EquipmentConfig{Address: o.address}
	if known, ok := inv.Device(o.address); ok {
		c := *known
		cfg = &c
	}
	if err := oxc.ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, "", err
	}
	o.override(cfg, fs)
	if _, err := reg.Open(ctx, cfg); err != nil {
		_ = reg.Close()
		return nil, "", err
	}
	return reg, oxc.DeviceAddress(cfg), nil
}

// override copies the flags given on the command line into cfg. Vendor,
// port and timeout also fill empty fields.
func (o *options) override(cfg *types.EquipmentConfig, fs *flag.FlagSet) {
	if fs.Changed("vendor") || cfg.Vendor == "" {
		cfg.Vendor = types.Vendor(o.vendor)
	}
	if fs.Changed("port") || cfg.Port == 0 || o.simulate {
		cfg.Port = o.port
	}
	if fs.Changed("protocol") || o.simulate {
		cfg.Protocol = types.Protocol(o.protocol)
	}
	if fs.Changed("timeout") || cfg.Timeout == 0 {
		cfg.Timeout = o.timeout
	}
}

func startSimulator(size int) (*mock.Server, error) {
	fabric, err := mock.NewDriver(&types.EquipmentConfig{
		Name: "simulator",
		Metadata: map[string]string{
			"inputs": strconv.Itoa(size),
			"model":  fmt.Sprintf("N-SIM-%dx%d-LU1", size, size),
		},
	})
	if err != nil {
		return nil, err
	}
	srv := mock.NewServer(fabric, logger.GetLogger())
	if err := srv.Listen("127.0.0.1:0"); err != nil {
		return nil, fmt.Errorf("simulator: %w", err)
	}
	return srv, nil
}

// ── commands ─────────────────────────────────────────────────────────

type command func(ctx context.Context, reg *oxc.Registry, key string, args []string, o *options, w io.Writer) error

var commands = map[string]command{ //nolint:gochecknoglobals
	"idn": run(func(ctx context.Context, dev oxc.OXC, _ []string) (any, error) {
		return dev.Identify(ctx)
	}),
	"ports": run(func(ctx context.Context, dev oxc.OXC, _ []string) (any, error) {
		return dev.Ports(ctx)
	}),
	"connections": run(func(ctx context.Context, dev oxc.OXC, _ []string) (any, error) {
		return dev.Connections(ctx)
	}),
	"connect": run(withPairs(func(ctx context.Context, dev oxc.OXC, conns types.ConnectionMap) error {
		return dev.Connect(ctx, conns)
	})),
	"disconnect": run(withPairs(func(ctx context.Context, dev oxc.OXC, conns types.ConnectionMap) error {
		return dev.Disconnect(ctx, conns)
	})),
	"set": run(withPairs(func(ctx context.Context, dev oxc.OXC, conns types.ConnectionMap) error {
		return dev.SetConnections(ctx, conns)
	})),
	"disconnect-all": run(func(ctx context.Context, dev oxc.OXC, _ []string) (any, error) {
		if err := dev.DisconnectAll(ctx); err != nil {
			return nil, err
		}
		return dev.Connections(ctx)
	}),
	"power": run(func(ctx context.Context, dev oxc.OXC, args []string) (any, error) {
		if len(args) == 0 {
			return dev.Power(ctx)
		}
		ports, err := parsePorts(args)
		if err != nil {
			return nil, err
		}
		return dev.GetPower(ctx, ports)
	}),
	"netconfig": run(func(ctx context.Context, dev oxc.OXC, _ []string) (any, error) {
		nc, ok := dev.(oxc.NetworkConfigurer)
		if !ok {
			return nil, fmt.Errorf("network config: %w", types.ErrNotSupported)
		}
		return nc.NetworkConfig(ctx)
	}),
	"status": func(ctx context.Context, reg *oxc.Registry, key string, _ []string, o *options, w io.Writer) error {
		st, err := reg.Status(ctx, key)
		if err != nil {
			return err
		}
		if o.jsonOut {
			return writeJSON(w, types.NewResult(st, nil))
		}
		return writeJSON(w, st)
	},
}

// run adapts fn to a command executed through the registry.
func run(fn func(ctx context.Context, dev oxc.OXC, args []string) (any, error)) command {
	return func(ctx context.Context, reg *oxc.Registry, key string, args []string, o *options, w io.Writer) error {
		res := reg.Do(ctx, key, func(ctx context.Context, dev oxc.OXC) (any, error) {
			return fn(ctx, dev, args)
		})
		if o.jsonOut {
			if err := writeJSON(w, res); err != nil {
				return err
			}
		} else if res.OK {
			render(w, res.Data)
		}
		if !res.OK {
			return errors.New(res.Message)
		}
		return nil
	}
}

// withPairs parses "in:out" arguments and prints the resulting connections.
func withPairs(fn func(ctx context.Context, dev oxc.OXC, conns types.ConnectionMap) error) func(context.Context, oxc.OXC, []string) (any, error) {
	return func(ctx context.Context, dev oxc.OXC, args []string) (any, error) {
		conns, err := parsePairs(args)
		if err != nil {
			return nil, err
		}
		ports, err := dev.Ports(ctx)
		if err != nil {
			return nil, err
		}
		if err := checkPairs(conns, ports); err != nil {
			return nil, err
		}
		if err := fn(ctx, dev, conns); err != nil {
			return nil, err
		}
		return dev.Connections(ctx)
	}
}

// ── helpers ──────────────────────────────────────────────────────────

// checkPairs rejects pairs that do not join an input to an output of r.
// Devices acknowledge a rejected command like any other, so the fault
// would otherwise go unnoticed.
func checkPairs(conns types.ConnectionMap, r *types.PortRange) error {
	for _, p := range conns.Pairs() {
		s := p.Sorted()
		if !r.IsInput(s.In) || !r.IsOutput(s.Out) {
			return fmt.Errorf("%w: %s must join an input 1..%d to an output %d..%d",
				types.ErrPortOutOfRange, p, r.Inputs, r.Inputs+1, r.Total())
		}
	}
	return nil
}

func parsePairs(args []string) (types.ConnectionMap, error) {
	conns := make(types.ConnectionMap, len(args))
	for _, arg := range args {
		for _, item := range strings.Split(arg, ",") {
			if item == "" {
				continue
			}
			in, out, ok := strings.Cut(item, ":")
			if !ok {
				return nil, fmt.Errorf("connection %q: expected in:out", item)
			}
			i, err := strconv.Atoi(in)
			if err != nil {
				return nil, fmt.Errorf("connection %q: %w", item, err)
			}
			o, err := strconv.Atoi(out)
			if err != nil {
				return nil, fmt.Errorf("connection %q: %w", item, err)
			}
			if _, dup := conns[i]; dup {
				return nil, fmt.Errorf("%w: port %d given twice", types.ErrInvalidConnection, i)
			}
			conns[i] = o
		}
	}
	return conns, nil
}

func parsePorts(args []string) ([]int, error) {
	var ports []int
	for _, arg := range args {
		for _, item := range strings.Split(arg, ",") {
			if item == "" {
				continue
			}
			p, err := strconv.Atoi(item)
			if err != nil {
				return nil, fmt.Errorf("port %q: %w", item, err)
			}
			ports = append(ports, p)
		}
	}
	return ports, nil
}

func render(w io.Writer, data any) {
	switch v := data.(type) {
	case *types.Identity:
		fmt.Fprintln(w, v.String())
	case *types.PortRange:
		fmt.Fprintf(w, "inputs:  %s\noutputs: %s\n", span(v.InputPorts()), span(v.OutputPorts()))
	case types.ConnectionMap:
		for _, p := range v.Pairs() {
			fmt.Fprintf(w, "%d -> %d\n", p.In, p.Out)
		}
	case types.PowerReading:
		for _, p := range v.Ports() {
			fmt.Fprintf(w, "%d\t%.2f dBm\n", p, v[p])
		}
	case map[string]string:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s=%s\n", k, v[k])
		}
	default:
		_ = writeJSON(w, v)
	}
}

func span(ports []int) string {
	if len(ports) == 0 {
		return "-"
	}
	return fmt.Sprintf("%d..%d (%d)", ports[0], ports[len(ports)-1], len(ports))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `oxcctl – optical cross-connect control v%s

Usage:
  oxcctl [options] <command> [arguments]

Commands:
  idn                       Identification
  ports                     Input and output ports
  connections               Active cross-connects
  connect in:out...         Add cross-connects
  disconnect in:out...      Remove cross-connects
  set in:out...             Replace every cross-connect
  disconnect-all            Remove every cross-connect
  power [port...]           Power levels, every port when none given
  netconfig                 Management network settings
  status                    Reachability and fabric occupancy

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  oxcctl -a 10.0.0.5 connect 1:97 2:98
  oxcctl --inventory lab.yaml -d tenant-a connections
  oxcctl -a 10.0.0.5 --slice-in 5,6 --slice-out 50,51 connect 1:3
  oxcctl --simulate --size 32 power 1 33
`)
}
