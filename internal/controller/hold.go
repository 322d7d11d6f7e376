package controller

import (
	"context"

	"github.com/micro-nova/imx415-go/internal/hardware"
	"github.com/micro-nova/imx415-go/internal/models"
)

// Tx is the view of a session inside WithGroupHold. Its setters run under
// the lock already held by WithGroupHold.
type Tx struct {
	s   *Session
	ctx context.Context
}

func (tx *Tx) SetVBlank(v int64) error { return tx.s.setVBlank(tx.ctx, v) }
func (tx *Tx) SetExposure(e int64) error { return tx.s.setExposure(tx.ctx, e) }
func (tx *Tx) SetAnalogGain(g int64) error { return tx.s.setAnalogGain(tx.ctx, g) }

func (tx *Tx) SetFlip(axis Axis, on bool) error {
	return tx.s.setFlip(tx.ctx, axis, on)
}

func (tx *Tx) SetControl(id models.ControlID, val int64) error {
	return tx.s.setControl(tx.ctx, id, val)
}

// WithGroupHold runs fn with the sensor's group hold engaged, so that the
// register writes fn makes take effect on the same frame. The hold is
// released even when fn fails. When the sensor is powered off no hold
// register is touched and fn only updates shadow values.
func (s *Session) WithGroupHold(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withHold(ctx, func() error { return fn(&Tx{s: s, ctx: ctx}) })
}

// SetControls sets several controls under one group hold, in presentation
// order. The batch is checked first against the ranges it would produce, so
// a rejected batch leaves every control unchanged and writes nothing.
func (s *Session) SetControls(ctx context.Context, values map[models.ControlID]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkControls(values); err != nil {
		return err
	}
	return s.withHold(ctx, func() error {
		for _, id := range models.ControlIDs {
			if v, ok := values[id]; ok {
				if err := s.setControl(ctx, id, v); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// withHold must be called with s.mu held. It returns the first error from
// hold start, fn or hold end.
func (s *Session) withHold(ctx context.Context, fn func() error) error {
	if !s.powered {
		return fn()
	}
	if err := s.hw.Regs.Write(ctx, hardware.RegHold, hardware.Width8, uint32(hardware.HoldStart)); err != nil {
		return models.ErrIO("group hold start", err)
	}
	err := fn()
	if endErr := s.hw.Regs.Write(ctx, hardware.RegHold, hardware.Width8, uint32(hardware.HoldEnd)); endErr != nil && err == nil {
		err = models.ErrIO("group hold end", endErr)
	}
	return err
}
