package controller

import (
	"context"
	"log/slog"

	"github.com/micro-nova/imx415-go/internal/hardware"
	"github.com/micro-nova/imx415-go/internal/models"
	"github.com/micro-nova/imx415-go/internal/sensor"
)

// Streaming reports whether the sensor is streaming.
func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

// SetStream starts or stops streaming.
func (s *Session) SetStream(ctx context.Context, on bool) error {
	if on {
		return s.Start(ctx)
	}
	return s.Stop(ctx)
}

// Start leaves standby. It programs the common table, the active mode's
// table and the current control values, then clears the standby bit. On
// failure the session stays in standby; registers already written are not
// rolled back. Starting while streaming is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streaming {
		return nil
	}
	if !s.powered {
		return models.ErrPower("sensor not powered", nil)
	}

	if err := s.hw.Regs.ApplyTable(ctx, sensor.CommonRegs()); err != nil {
		return models.ErrIO("apply common registers", err)
	}
	if err := s.hw.Regs.ApplyTable(ctx, s.mode.Regs); err != nil {
		return models.ErrIO("apply mode registers", err)
	}
	if err := s.withHold(ctx, func() error { return s.flushControls(ctx) }); err != nil {
		return err
	}
	if err := s.hw.Regs.Write(ctx, hardware.RegStandby, hardware.Width8, uint32(hardware.StandbyOff)); err != nil {
		return models.ErrIO("leave standby", err)
	}

	s.streaming = true
	slog.Info("sensor: streaming started",
		"width", s.mode.Width,
		"height", s.mode.Height,
		"bpp", s.mode.BitsPerPixel,
		"vts", s.vts)
	s.publish(models.EventStream, "")
	return nil
}

// flushControls writes the shadow VTS, exposure, gain and flip values.
func (s *Session) flushControls(ctx context.Context) error {
	writes := hardware.VTSWrites(s.vts)
	writes = append(writes, hardware.ExposureWrites(s.shr0())...)
	writes = append(writes, hardware.GainWrites(uint32(s.ctrls[models.CtrlAnalogGain].Value))...)
	if err := s.hw.Regs.WriteAll(ctx, writes...); err != nil {
		return models.ErrIO("write controls", err)
	}
	cur, err := s.hw.Regs.Read(ctx, hardware.RegFlip, hardware.Width8)
	if err != nil {
		return models.ErrIO("read flip", err)
	}
	if err := s.hw.Regs.Write(ctx, hardware.RegFlip, hardware.Width8, uint32(s.flipBits(byte(cur)))); err != nil {
		return models.ErrIO("write flip", err)
	}
	return nil
}

// Stop enters standby. It never fails: a failed standby write is logged
// and the session is marked as stopped anyway. Stopping while in standby
// is a no-op.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop(ctx)
	return nil
}

func (s *Session) stop(ctx context.Context) {
	if !s.streaming {
		return
	}
	if err := s.hw.Regs.Write(ctx, hardware.RegStandby, hardware.Width8, uint32(hardware.StandbyOn)); err != nil {
		slog.Warn("sensor: failed to enter standby", "err", err)
	}
	s.streaming = false
	slog.Info("sensor: streaming stopped")
	s.publish(models.EventStream, "")
}
