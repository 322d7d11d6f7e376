// Package controller implements the IMX415 device session: the single owner
// of the active mode, the control values and the power and streaming flags
// of one sensor. Every operation runs under the session lock.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/micro-nova/imx415-go/internal/events"
	"github.com/micro-nova/imx415-go/internal/hardware"
	"github.com/micro-nova/imx415-go/internal/models"
	"github.com/micro-nova/imx415-go/internal/sensor"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Config holds the board inputs a session is built from.
type Config struct {
	Lanes         int              // MIPI data lanes, 2 or 4
	XClk          physic.Frequency // external clock, 37.125 or 74.25 MHz
	LinkFreqIndex int              // index into sensor.LinkFrequencies
}

// Validate rejects lane counts, clocks and link-frequency indices the
// sensor does not support.
func (c Config) Validate() error {
	if _, ok := hardware.LaneModeValue(c.Lanes); !ok {
		return models.ErrConfig(fmt.Sprintf("unsupported lane count %d", c.Lanes))
	}
	if c.XClk != hardware.XClk37M && c.XClk != hardware.XClk74M {
		return models.ErrConfig(fmt.Sprintf("unsupported external clock %s", c.XClk))
	}
	if c.LinkFreqIndex < 0 || c.LinkFreqIndex >= len(sensor.LinkFrequencies) {
		return models.ErrConfig(fmt.Sprintf("link frequency index %d out of range", c.LinkFreqIndex))
	}
	return nil
}

// Registers is the register access a session needs. *hardware.Port
// implements it.
type Registers interface {
	Read(ctx context.Context, reg hardware.Register, width int) (uint32, error)
	Write(ctx context.Context, reg hardware.Register, width int, val uint32) error
	ApplyTable(ctx context.Context, table []hardware.RegVal) error
	WriteAll(ctx context.Context, writes ...hardware.RegWrite) error
}

// Hardware bundles the collaborators of a session.
type Hardware struct {
	Regs   Registers
	Clock  hardware.Clock  // nil: free-running oscillator at Config.XClk
	Supply hardware.Supply // nil: always-on rails
	Reset  gpio.PinOut     // XCLR; nil when tied high
}

// Option configures a Session.
type Option func(*Session)

// WithSleep replaces the power-on delay function.
func WithSleep(fn func(time.Duration)) Option {
	return func(s *Session) { s.sleep = fn }
}

// Session is the runtime state of one sensor.
type Session struct {
	mu    sync.Mutex
	cfg   Config
	hw    Hardware
	bus   *events.Bus
	sleep func(time.Duration)

	mode      *sensor.Mode
	vts       uint32
	pixelRate uint64
	powered   bool
	streaming bool
	ctrls     map[models.ControlID]*models.ControlInfo
}

// New validates cfg and creates a session in the default mode, powered
// off and in standby. No register is accessed. bus may be nil.
func New(cfg Config, hw Hardware, bus *events.Bus, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hw.Regs == nil {
		return nil, models.ErrConfig("no register port")
	}
	if hw.Clock == nil {
		hw.Clock = hardware.FixedClock{Rate: cfg.XClk}
	}
	if hw.Supply == nil {
		hw.Supply = &hardware.GPIOSupply{}
	}

	s := &Session{
		cfg:   cfg,
		hw:    hw,
		bus:   bus,
		sleep: time.Sleep,
		ctrls: make(map[models.ControlID]*models.ControlInfo, len(models.ControlIDs)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.initControls(sensor.Default())
	slog.Debug("sensor: session created",
		"lanes", cfg.Lanes,
		"xclk", cfg.XClk.String(),
		"link_freq", sensor.LinkFrequencies[cfg.LinkFreqIndex].String())
	return s, nil
}

// State returns a snapshot of the session.
func (s *Session) State() models.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Mode returns the active catalog entry.
func (s *Session) Mode() *sensor.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Format returns the active media-bus format.
func (s *Session) Format() models.Format {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode.Info().Format
}

// FrameInterval returns the active mode's frame interval.
func (s *Session) FrameInterval() models.Interval {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode.Interval
}

// TryFormat returns the mode that SetFormat would select, without changing
// the session.
func (s *Session) TryFormat(format, width, height uint32) models.ModeInfo {
	return sensor.FindBestFit(format, width, height).Info()
}

// ReadRegister reads a raw register. The sensor must be powered.
func (s *Session) ReadRegister(ctx context.Context, reg hardware.Register, width int) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRegAccess(width); err != nil {
		return 0, err
	}
	v, err := s.hw.Regs.Read(ctx, reg, width)
	if err != nil {
		return 0, models.ErrIO(fmt.Sprintf("read 0x%04x", reg), err)
	}
	return v, nil
}

// WriteRegister writes a raw register. The sensor must be powered. The
// write bypasses the control bookkeeping.
func (s *Session) WriteRegister(ctx context.Context, reg hardware.Register, width int, val uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRegAccess(width); err != nil {
		return err
	}
	if width < 4 && val>>(8*uint(width)) != 0 {
		return models.ErrOutOfRange(fmt.Sprintf("value 0x%x does not fit in %d bytes", val, width))
	}
	if err := s.hw.Regs.Write(ctx, reg, width, val); err != nil {
		return models.ErrIO(fmt.Sprintf("write 0x%04x", reg), err)
	}
	slog.Info("sensor: raw register write", "reg", fmt.Sprintf("0x%04x", reg), "width", width, "val", val)
	return nil
}

func (s *Session) checkRegAccess(width int) error {
	if width < hardware.Width8 || width > hardware.Width32 {
		return models.ErrBadRequest(hardware.WidthError{Width: width}.Error())
	}
	if !s.powered {
		return models.ErrPower("sensor not powered", nil)
	}
	return nil
}

// snapshot must be called with s.mu held.
func (s *Session) snapshot() models.State {
	st := models.State{
		Mode:      s.mode.Info(),
		VTS:       s.vts,
		Lanes:     s.cfg.Lanes,
		PixelRate: s.pixelRate,
		Powered:   s.powered,
		Streaming: s.streaming,
		Controls:  make([]models.ControlInfo, 0, len(models.ControlIDs)),
	}
	for _, id := range models.ControlIDs {
		st.Controls = append(st.Controls, *s.ctrls[id])
	}
	return st
}

// publish must be called with s.mu held.
func (s *Session) publish(kind models.EventKind, id models.ControlID) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(models.Event{Kind: kind, Control: id, State: s.snapshot()})
}
