package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/micro-nova/imx415-go/internal/hardware"
	"github.com/micro-nova/imx415-go/internal/models"
	"periph.io/x/conn/v3/gpio"
)

// Power-on delays.
const (
	supplySettle = time.Microsecond      // supplies up to XCLR release
	resetSettle  = 30 * time.Millisecond // XCLR release to first register access
)

// Powered reports whether the sensor is powered.
func (s *Session) Powered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.powered
}

// PowerOn runs the power-up sequence: clock, supplies, XCLR release, then
// lane-mode programming. A clock, supply or reset failure releases what
// was already enabled. A lane-mode read-back mismatch is only logged.
func (s *Session) PowerOn(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.powered {
		return nil
	}

	if err := s.hw.Clock.Enable(s.cfg.XClk); err != nil {
		return models.ErrPower("enable clock", err)
	}
	if err := s.hw.Supply.Enable(); err != nil {
		s.hw.Clock.Disable()
		return models.ErrPower("enable supplies", err)
	}
	s.sleep(supplySettle)
	if err := s.setReset(gpio.High); err != nil {
		s.hw.Supply.Disable()
		s.hw.Clock.Disable()
		return models.ErrPower("release reset", err)
	}
	s.sleep(resetSettle)

	laneVal, _ := hardware.LaneModeValue(s.cfg.Lanes)
	if err := s.hw.Regs.Write(ctx, hardware.RegLaneMode, hardware.Width8, uint32(laneVal)); err != nil {
		s.powerDown()
		return models.ErrIO("set lane mode", err)
	}
	got, err := s.hw.Regs.Read(ctx, hardware.RegLaneMode, hardware.Width8)
	switch {
	case err != nil:
		slog.Warn("sensor: lane mode read-back failed", "err", err)
	case got != uint32(laneVal):
		slog.Warn("sensor: lane mode mismatch",
			"want", fmt.Sprintf("0x%02x", laneVal),
			"got", fmt.Sprintf("0x%02x", got))
	default:
		slog.Debug("sensor: lane mode set", "lanes", s.cfg.Lanes)
	}

	s.powered = true
	slog.Info("sensor: powered on", "xclk", s.cfg.XClk.String(), "lanes", s.cfg.Lanes)
	s.publish(models.EventPower, "")
	return nil
}

// PowerOff disables the clock, asserts XCLR and disables the supplies.
// It never fails. A streaming session is marked stopped without touching
// the standby register.
func (s *Session) PowerOff() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.powerOff()
	return nil
}

func (s *Session) powerOff() {
	if !s.powered {
		return
	}
	s.powerDown()
	s.powered = false
	s.streaming = false
	slog.Info("sensor: powered off")
	s.publish(models.EventPower, "")
}

func (s *Session) powerDown() {
	s.hw.Clock.Disable()
	if err := s.setReset(gpio.Low); err != nil {
		slog.Warn("sensor: failed to assert reset", "err", err)
	}
	s.hw.Supply.Disable()
}

func (s *Session) setReset(l gpio.Level) error {
	if s.hw.Reset == nil {
		return nil
	}
	return s.hw.Reset.Out(l)
}

// Identify reads the chip ID register and checks it against the IMX415
// value. The sensor must be powered.
func (s *Session) Identify(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.powered {
		return models.ErrPower("sensor not powered", nil)
	}
	id, err := s.hw.Regs.Read(ctx, hardware.RegChipID, hardware.Width8)
	if err != nil {
		return models.ErrIO("read chip id", err)
	}
	if id != uint32(hardware.ChipID) {
		return models.ErrIdentityMismatch(fmt.Sprintf("chip id 0x%02x, want 0x%02x", id, hardware.ChipID))
	}
	slog.Debug("sensor: chip id match", "id", fmt.Sprintf("0x%02x", id))
	return nil
}

// Close detaches the session: streaming is stopped and the sensor powered
// off.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop(ctx)
	s.powerOff()
	return nil
}
