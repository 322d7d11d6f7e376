package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/micro-nova/imx415-go/internal/config"
	"github.com/micro-nova/imx415-go/internal/controller"
	"github.com/micro-nova/imx415-go/internal/events"
	"github.com/micro-nova/imx415-go/internal/hardware"
	"github.com/micro-nova/imx415-go/internal/logging"
	"github.com/micro-nova/imx415-go/internal/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	configFlag = "config"
	debugFlag  = "debug"
	mockFlag   = "mock"
	busFlag    = "bus"
	addrFlag   = "addr"
	lanesFlag  = "lanes"
	xclkFlag   = "xclk"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	debug      bool
	mock       bool
	bus        string
	addr       uint16
	lanes      int
	xclk       int64
}

func newRootCommand(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "imx415",
		Short:        "Control a Sony IMX415 image sensor",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(logging.New(cmd.ErrOrStderr(), level)))
		},
	}
	cmd.SetOut(out)

	defaults := config.Defaults()
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, configFlag, defaultConfigPath(), "configuration file (.toml or .json)")
	pf.BoolVar(&opts.debug, debugFlag, false, "enable debug logging")
	pf.BoolVar(&opts.mock, mockFlag, false, "use a simulated sensor (no I2C device required)")
	pf.StringVar(&opts.bus, busFlag, defaults.Bus, "I2C bus name; empty selects the first bus")
	pf.Uint16Var(&opts.addr, addrFlag, defaults.Addr, "sensor 7-bit I2C address")
	pf.IntVar(&opts.lanes, lanesFlag, defaults.Lanes, "MIPI CSI-2 data lanes (2 or 4)")
	pf.Int64Var(&opts.xclk, xclkFlag, defaults.XClkHz, "external clock in Hz (37125000 or 74250000)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newIdentifyCommand(opts))
	cmd.AddCommand(newModesCommand())
	cmd.AddCommand(newRegCommand(opts))
	cmd.AddCommand(newConfigCommand(opts))
	return cmd
}

// defaultConfigPath returns ~/.config/imx415/config.toml, or a relative
// path when the home directory is unknown.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "imx415.toml"
	}
	return filepath.Join(home, ".config", "imx415", "config.toml")
}

// device loads the configuration file and applies the flags that were set
// explicitly on the command line.
func (o *rootOptions) device(flags *pflag.FlagSet) (config.Device, error) {
	d, err := config.Load(o.configPath)
	if err != nil {
		return d, err
	}
	o.override(&d, flags)
	if err := d.Validate(); err != nil {
		return d, err
	}
	return d, nil
}

func (o *rootOptions) override(d *config.Device, flags *pflag.FlagSet) {
	if flags.Changed(busFlag) {
		d.Bus = o.bus
	}
	if flags.Changed(addrFlag) {
		d.Addr = o.addr
	}
	if flags.Changed(lanesFlag) {
		d.Lanes = o.lanes
	}
	if flags.Changed(xclkFlag) {
		d.XClkHz = o.xclk
	}
}

// openSession binds a session to the sensor described by d, or to a mock
// sensor. The returned release func closes the I2C bus; it does not power
// the sensor off.
func (o *rootOptions) openSession(d config.Device, bus *events.Bus) (*controller.Session, func(), error) {
	portOpts := []hardware.PortOption{hardware.WithObserver(metrics.ObserveRegister)}
	if d.RateLimit > 0 {
		portOpts = append(portOpts, hardware.WithRateLimit(d.RateLimit))
	}

	if o.mock {
		slog.Info("using mock sensor")
		port := hardware.NewPort(hardware.NewMock(), portOpts...)
		sess, err := controller.New(d.Sensor(), controller.Hardware{Regs: port}, bus)
		if err != nil {
			return nil, nil, err
		}
		return sess, func() {}, nil
	}

	port, closer, err := hardware.OpenI2C(d.Bus, d.Addr, portOpts...)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if err := closer.Close(); err != nil {
			slog.Warn("i2c: close failed", "err", err)
		}
	}
	clk, supply, reset, err := hardware.OpenPower(d.Power(), d.XClk())
	if err != nil {
		release()
		return nil, nil, err
	}
	sess, err := controller.New(d.Sensor(), controller.Hardware{
		Regs:   port,
		Clock:  clk,
		Supply: supply,
		Reset:  reset,
	}, bus)
	if err != nil {
		release()
		return nil, nil, err
	}
	return sess, release, nil
}
