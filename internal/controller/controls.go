package controller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/micro-nova/imx415-go/internal/hardware"
	"github.com/micro-nova/imx415-go/internal/models"
	"github.com/micro-nova/imx415-go/internal/sensor"
)

// Axis selects a flip direction.
type Axis int

const (
	AxisHorizontal Axis = iota // mirror
	AxisVertical               // flip
)

func (a Axis) control() models.ControlID {
	if a == AxisVertical {
		return models.CtrlVFlip
	}
	return models.CtrlHFlip
}

func (a Axis) mask() byte {
	if a == AxisVertical {
		return hardware.FlipMask
	}
	return hardware.MirrorMask
}

func (s *Session) initControls(m *sensor.Mode) {
	lf := int64(s.cfg.LinkFreqIndex)
	s.ctrls[models.CtrlLinkFrequency] = &models.ControlInfo{
		ID: models.CtrlLinkFrequency, Value: lf, Min: 0, Max: int64(len(sensor.LinkFrequencies) - 1),
		Step: 1, Default: lf, ReadOnly: true,
	}
	s.ctrls[models.CtrlPixelRate] = &models.ControlInfo{ID: models.CtrlPixelRate, Step: 1, ReadOnly: true}
	s.ctrls[models.CtrlHBlank] = &models.ControlInfo{ID: models.CtrlHBlank, Step: 1, ReadOnly: true}
	s.ctrls[models.CtrlVBlank] = &models.ControlInfo{ID: models.CtrlVBlank, Step: 1}
	s.ctrls[models.CtrlExposure] = &models.ControlInfo{
		ID: models.CtrlExposure, Value: int64(m.Exposure), Min: sensor.ExposureMin,
		Step: sensor.ExposureStep, Default: int64(m.Exposure),
	}
	s.ctrls[models.CtrlAnalogGain] = &models.ControlInfo{
		ID: models.CtrlAnalogGain, Value: sensor.GainDefault, Min: sensor.GainMin, Max: sensor.GainMax,
		Step: sensor.GainStep, Default: sensor.GainDefault,
	}
	s.ctrls[models.CtrlHFlip] = &models.ControlInfo{ID: models.CtrlHFlip, Min: 0, Max: 1, Step: 1}
	s.ctrls[models.CtrlVFlip] = &models.ControlInfo{ID: models.CtrlVFlip, Min: 0, Max: 1, Step: 1}
	s.selectMode(m)
}

// SelectMode makes m the active mode and re-derives the blanking, exposure
// and pixel-rate ranges from it. It writes no registers; the mode's table
// is applied by the next Start.
func (s *Session) SelectMode(m *sensor.Mode) error {
	if m == nil {
		return models.ErrBadRequest("no mode")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectMode(m)
	slog.Info("sensor: mode selected", "width", m.Width, "height", m.Height, "vts", s.vts)
	s.publish(models.EventMode, "")
	return nil
}

// SetFormat selects the catalog mode that best fits the requested format
// and size, and returns it.
func (s *Session) SetFormat(format, width, height uint32) (models.ModeInfo, error) {
	m := sensor.FindBestFit(format, width, height)
	if err := s.SelectMode(m); err != nil {
		return models.ModeInfo{}, err
	}
	return m.Info(), nil
}

func (s *Session) selectMode(m *sensor.Mode) {
	s.mode = m
	s.vts = m.VTS

	hb := m.HBlank()
	*s.ctrls[models.CtrlHBlank] = models.ControlInfo{
		ID: models.CtrlHBlank, Value: hb, Min: hb, Max: hb, Step: 1, Default: hb, ReadOnly: true,
	}

	vb := s.ctrls[models.CtrlVBlank]
	vb.Min = sensor.VBlankMin
	vb.Max = m.VBlankMax()
	vb.Default = m.VBlankDefault()
	vb.Value = vb.Default

	s.deriveExposureRange()

	s.pixelRate = sensor.PixelRate(sensor.LinkFrequencies[s.cfg.LinkFreqIndex], s.cfg.Lanes, m.BitsPerPixel)
	pr := int64(s.pixelRate)
	*s.ctrls[models.CtrlPixelRate] = models.ControlInfo{
		ID: models.CtrlPixelRate, Value: pr, Min: pr, Max: pr, Step: 1, Default: pr, ReadOnly: true,
	}
}

// deriveExposureRange sets exposure max from the current VTS and clamps the
// value and default into the new range. It reports whether the value moved.
func (s *Session) deriveExposureRange() bool {
	e := s.ctrls[models.CtrlExposure]
	e.Max = int64(s.vts) - sensor.ExposureMargin
	e.Default = min(int64(s.mode.Exposure), e.Max)
	if e.Value > e.Max {
		e.Value = e.Max
		return true
	}
	return false
}

// Control returns one control.
func (s *Session) Control(id models.ControlID) (models.ControlInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.ctrls[id]
	if !ok {
		return models.ControlInfo{}, models.ErrNotFound(fmt.Sprintf("unknown control %q", id))
	}
	return *c, nil
}

// Controls returns every control in presentation order.
func (s *Session) Controls() []models.ControlInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot().Controls
}

// SetControl sets a writable control by name. Flip controls take 0 or 1.
func (s *Session) SetControl(ctx context.Context, id models.ControlID, val int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setControl(ctx, id, val)
}

// SetVBlank sets vertical blanking, moving VTS and the exposure limit.
func (s *Session) SetVBlank(ctx context.Context, v int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setVBlank(ctx, v)
}

// SetExposure sets the exposure time in lines.
func (s *Session) SetExposure(ctx context.Context, e int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setExposure(ctx, e)
}

// SetAnalogGain sets the analog gain code.
func (s *Session) SetAnalogGain(ctx context.Context, g int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setAnalogGain(ctx, g)
}

// SetFlip enables or disables mirroring on one axis.
func (s *Session) SetFlip(ctx context.Context, axis Axis, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setFlip(ctx, axis, on)
}

// The setters below must be called with s.mu held. Each updates the shadow
// value first, then writes the sensor only when it is powered. A failed
// write leaves the shadow value in place.

func (s *Session) setControl(ctx context.Context, id models.ControlID, val int64) error {
	switch id {
	case models.CtrlVBlank:
		return s.setVBlank(ctx, val)
	case models.CtrlExposure:
		return s.setExposure(ctx, val)
	case models.CtrlAnalogGain:
		return s.setAnalogGain(ctx, val)
	case models.CtrlHFlip, models.CtrlVFlip:
		if val != 0 && val != 1 {
			return models.ErrOutOfRange(fmt.Sprintf("%s must be 0 or 1, got %d", id, val))
		}
		axis := AxisHorizontal
		if id == models.CtrlVFlip {
			axis = AxisVertical
		}
		return s.setFlip(ctx, axis, val == 1)
	case models.CtrlLinkFrequency, models.CtrlPixelRate, models.CtrlHBlank:
		return models.ErrReadOnly(fmt.Sprintf("%s is read-only", id))
	}
	return models.ErrNotFound(fmt.Sprintf("unknown control %q", id))
}

func (s *Session) setVBlank(ctx context.Context, v int64) error {
	vb := s.ctrls[models.CtrlVBlank]
	if err := checkRange(vb, v); err != nil {
		return err
	}
	vb.Value = v
	s.vts = uint32(v) + s.mode.Height
	clamped := s.deriveExposureRange()
	if clamped {
		slog.Debug("sensor: exposure clamped", "exposure", s.ctrls[models.CtrlExposure].Value)
	}
	defer s.publish(models.EventControl, models.CtrlVBlank)

	if !s.powered {
		return nil
	}
	// SHR0 is relative to VTS, so it is rewritten with the new frame length.
	writes := append(hardware.VTSWrites(s.vts), hardware.ExposureWrites(s.shr0())...)
	if err := s.hw.Regs.WriteAll(ctx, writes...); err != nil {
		return models.ErrIO("write VTS", err)
	}
	return nil
}

func (s *Session) setExposure(ctx context.Context, e int64) error {
	c := s.ctrls[models.CtrlExposure]
	if err := checkRange(c, e); err != nil {
		return err
	}
	c.Value = e
	defer s.publish(models.EventControl, models.CtrlExposure)

	if !s.powered {
		return nil
	}
	if err := s.hw.Regs.WriteAll(ctx, hardware.ExposureWrites(s.shr0())...); err != nil {
		return models.ErrIO("write exposure", err)
	}
	return nil
}

func (s *Session) setAnalogGain(ctx context.Context, g int64) error {
	c := s.ctrls[models.CtrlAnalogGain]
	if err := checkRange(c, g); err != nil {
		return err
	}
	c.Value = g
	defer s.publish(models.EventControl, models.CtrlAnalogGain)

	if !s.powered {
		return nil
	}
	if err := s.hw.Regs.WriteAll(ctx, hardware.GainWrites(uint32(g))...); err != nil {
		return models.ErrIO("write gain", err)
	}
	return nil
}

func (s *Session) setFlip(ctx context.Context, axis Axis, on bool) error {
	c := s.ctrls[axis.control()]
	c.Value = 0
	if on {
		c.Value = 1
	}
	defer s.publish(models.EventControl, axis.control())

	if !s.powered {
		return nil
	}
	cur, err := s.hw.Regs.Read(ctx, hardware.RegFlip, hardware.Width8)
	if err != nil {
		return models.ErrIO("read flip", err)
	}
	next := hardware.SetFlipBit(byte(cur), axis.mask(), on)
	if err := s.hw.Regs.Write(ctx, hardware.RegFlip, hardware.Width8, uint32(next)); err != nil {
		return models.ErrIO("write flip", err)
	}
	return nil
}

// shr0 is the shutter count for the current exposure and VTS.
func (s *Session) shr0() uint32 {
	return s.vts - uint32(s.ctrls[models.CtrlExposure].Value)
}

// flipBits returns the flip register bits for the shadow flip controls.
func (s *Session) flipBits(cur byte) byte {
	cur = hardware.SetFlipBit(cur, hardware.MirrorMask, s.ctrls[models.CtrlHFlip].Value == 1)
	return hardware.SetFlipBit(cur, hardware.FlipMask, s.ctrls[models.CtrlVFlip].Value == 1)
}

// checkControls validates a batch in presentation order without touching
// the session. A vertical blanking in the batch moves the exposure limit
// that a later exposure is checked against.
func (s *Session) checkControls(values map[models.ControlID]int64) error {
	for id := range values {
		if _, ok := s.ctrls[id]; !ok {
			return models.ErrNotFound(fmt.Sprintf("unknown control %q", id))
		}
	}
	expMax := s.ctrls[models.CtrlExposure].Max
	for _, id := range models.ControlIDs {
		v, ok := values[id]
		if !ok {
			continue
		}
		c := s.ctrls[id]
		switch {
		case c.ReadOnly:
			return models.ErrReadOnly(fmt.Sprintf("%s is read-only", id))
		case id == models.CtrlExposure:
			if v < c.Min || v > expMax {
				return models.ErrOutOfRange(fmt.Sprintf("%s %d outside [%d, %d]", id, v, c.Min, expMax))
			}
		default:
			if err := checkRange(c, v); err != nil {
				return err
			}
			if id == models.CtrlVBlank {
				expMax = v + int64(s.mode.Height) - sensor.ExposureMargin
			}
		}
	}
	return nil
}

func checkRange(c *models.ControlInfo, v int64) error {
	if v < c.Min || v > c.Max {
		return models.ErrOutOfRange(fmt.Sprintf("%s %d outside [%d, %d]", c.ID, v, c.Min, c.Max))
	}
	return nil
}
