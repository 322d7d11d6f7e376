package controller_test

import (
	"context"
	"errors"
	"testing"

	"github.com/micro-nova/imx415-go/internal/controller"
	"github.com/micro-nova/imx415-go/internal/hardware"
	"github.com/micro-nova/imx415-go/internal/models"
	"github.com/micro-nova/imx415-go/internal/sensor"
)

func TestStartRequiresPower(t *testing.T) {
	r := newRig(t, defaultConfig())
	wantKind(t, r.s.Start(context.Background()), models.ErrKindPower)
	if r.s.Streaming() {
		t.Error("streaming without power")
	}
	if r.mock.Transactions() != 0 {
		t.Error("Start touched the bus while powered off")
	}
}

func TestStartSequence(t *testing.T) {
	r := newPoweredRig(t)
	if err := r.s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !r.s.Streaming() {
		t.Fatal("not streaming")
	}

	writes := r.mock.Writes()
	common := sensor.CommonRegs()
	for i, rv := range common[:len(common)-1] {
		if writes[i] != rv {
			t.Fatalf("write %d = %+v, want common %+v", i, writes[i], rv)
		}
	}
	mode := sensor.Default().Regs
	off := len(common) - 1
	for i, rv := range mode[:len(mode)-1] {
		if writes[off+i] != rv {
			t.Fatalf("write %d = %+v, want mode %+v", off+i, writes[off+i], rv)
		}
	}
	for _, w := range writes {
		if w.Reg == hardware.RegNull {
			t.Fatal("sentinel written")
		}
	}
	last := writes[len(writes)-1]
	if last.Reg != hardware.RegStandby || last.Val != hardware.StandbyOff {
		t.Errorf("last write %+v, want standby off", last)
	}
	if len(writes) < 2 || writes[len(writes)-2].Reg != hardware.RegHold || writes[len(writes)-2].Val != hardware.HoldEnd {
		t.Errorf("control flush not closed by hold end before standby")
	}
}

func TestStartFlushesShadowControls(t *testing.T) {
	r := newRig(t, defaultConfig())
	ctx := context.Background()
	if err := r.s.SetVBlank(ctx, 1000); err != nil {
		t.Fatal(err)
	}
	if err := r.s.SetExposure(ctx, 1000); err != nil {
		t.Fatal(err)
	}
	if err := r.s.SetAnalogGain(ctx, 0x1A5&0xFF); err != nil {
		t.Fatal(err)
	}
	if err := r.s.SetFlip(ctx, controller.AxisHorizontal, true); err != nil {
		t.Fatal(err)
	}
	if err := r.s.PowerOn(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.s.Start(ctx); err != nil {
		t.Fatal(err)
	}

	m := r.mock
	if got := hardware.Join20(m.GetReg(hardware.RegVTSH), m.GetReg(hardware.RegVTSM), m.GetReg(hardware.RegVTSL)); got != 3192 {
		t.Errorf("VTS %d, want 3192", got)
	}
	if got := hardware.Join20(m.GetReg(hardware.RegExpH), m.GetReg(hardware.RegExpM), m.GetReg(hardware.RegExpL)); got != 3192-1000 {
		t.Errorf("SHR0 %d, want %d", got, 3192-1000)
	}
	if m.GetReg(hardware.RegGainL) != 0xA5 || m.GetReg(hardware.RegGainH) != 0 {
		t.Errorf("gain %02x %02x", m.GetReg(hardware.RegGainH), m.GetReg(hardware.RegGainL))
	}
	if m.GetReg(hardware.RegFlip)&hardware.MirrorMask == 0 {
		t.Error("mirror not flushed")
	}
	if m.GetReg(hardware.RegHold) != hardware.HoldEnd {
		t.Error("hold left engaged")
	}
}

func TestStartFailureLeavesStandby(t *testing.T) {
	for _, reg := range []hardware.Register{0x32D4, 0x3008, hardware.RegHold, hardware.RegFlip, hardware.RegStandby} {
		r := newPoweredRig(t)
		r.mock.FailAt(reg, true)
		err := r.s.Start(context.Background())
		wantKind(t, err, models.ErrKindIO)
		var ioErr *hardware.IOError
		if !errors.As(err, &ioErr) {
			t.Errorf("reg 0x%04x: cause %v is not an IOError", reg, err)
		}
		if r.s.Streaming() {
			t.Errorf("reg 0x%04x: streaming after failed start", reg)
		}
		if r.s.State().Streaming {
			t.Errorf("reg 0x%04x: state reports streaming", reg)
		}
	}
}

func TestStartTableStopsAtFirstFailure(t *testing.T) {
	r := newPoweredRig(t)
	r.mock.FailAt(0x3452, true) // third entry of the common table
	_ = r.s.Start(context.Background())
	if n := len(r.mock.Writes()); n != 2 {
		t.Errorf("%d writes landed, want 2", n)
	}
}

func TestStartIdempotent(t *testing.T) {
	r := newPoweredRig(t)
	ctx := context.Background()
	if err := r.s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	r.mock.ResetLog()
	if err := r.s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if n := r.mock.Transactions(); n != 0 {
		t.Errorf("second Start made %d transactions", n)
	}
}

func TestStopFromStandbyIsNoop(t *testing.T) {
	r := newPoweredRig(t)
	if err := r.s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := r.mock.Transactions(); n != 0 {
		t.Errorf("Stop in standby made %d transactions", n)
	}
}

func TestStopIsBestEffort(t *testing.T) {
	r := newPoweredRig(t)
	ctx := context.Background()
	if err := r.s.SetStream(ctx, true); err != nil {
		t.Fatal(err)
	}
	r.mock.FailAt(hardware.RegStandby, true)
	if err := r.s.SetStream(ctx, false); err != nil {
		t.Errorf("Stop returned %v", err)
	}
	if r.s.Streaming() {
		t.Error("still streaming after stop")
	}
}

func TestStopWritesStandby(t *testing.T) {
	r := newPoweredRig(t)
	ctx := context.Background()
	if err := r.s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := r.s.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if r.mock.GetReg(hardware.RegStandby) != hardware.StandbyOn {
		t.Error("standby bit not set")
	}
}

func TestGroupHold(t *testing.T) {
	r := newPoweredRig(t)
	ctx := context.Background()
	err := r.s.WithGroupHold(ctx, func(tx *controller.Tx) error {
		if err := tx.SetExposure(1000); err != nil {
			return err
		}
		return tx.SetAnalogGain(32)
	})
	if err != nil {
		t.Fatal(err)
	}
	w := r.mock.Writes()
	if w[0] != (hardware.RegVal{Reg: hardware.RegHold, Val: hardware.HoldStart}) {
		t.Errorf("first write %+v, want hold start", w[0])
	}
	if w[len(w)-1] != (hardware.RegVal{Reg: hardware.RegHold, Val: hardware.HoldEnd}) {
		t.Errorf("last write %+v, want hold end", w[len(w)-1])
	}
	if len(w) != 2+3+2 {
		t.Errorf("%d writes, want 7", len(w))
	}
}

func TestGroupHoldReleasedOnError(t *testing.T) {
	r := newPoweredRig(t)
	ctx := context.Background()
	err := r.s.WithGroupHold(ctx, func(tx *controller.Tx) error {
		return tx.SetExposure(1 << 20)
	})
	wantKind(t, err, models.ErrKindOutOfRange)
	if r.mock.GetReg(hardware.RegHold) != hardware.HoldEnd {
		t.Error("hold not released after failure")
	}

	r.mock.FailAt(hardware.RegExpL, true)
	err = r.s.WithGroupHold(ctx, func(tx *controller.Tx) error {
		return tx.SetControl(models.CtrlExposure, 500)
	})
	wantKind(t, err, models.ErrKindIO)
	if r.mock.GetReg(hardware.RegHold) != hardware.HoldEnd {
		t.Error("hold not released after write failure")
	}
}

func TestGroupHoldStartFailureSkipsBody(t *testing.T) {
	r := newPoweredRig(t)
	r.mock.FailAt(hardware.RegHold, true)
	called := false
	err := r.s.WithGroupHold(context.Background(), func(tx *controller.Tx) error {
		called = true
		return nil
	})
	wantKind(t, err, models.ErrKindIO)
	if called {
		t.Error("body ran without hold")
	}
}

func TestGroupHoldPoweredOff(t *testing.T) {
	r := newRig(t, defaultConfig())
	err := r.s.WithGroupHold(context.Background(), func(tx *controller.Tx) error {
		return tx.SetFlip(controller.AxisVertical, true)
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.mock.Transactions() != 0 {
		t.Error("hold written while powered off")
	}
	if control(t, r.s, models.CtrlVFlip).Value != 1 {
		t.Error("shadow flip not updated")
	}
}

func TestSetControlsRejectedBatchChangesNothing(t *testing.T) {
	r := newPoweredRig(t)
	err := r.s.SetControls(context.Background(), map[models.ControlID]int64{
		models.CtrlVBlank:   1000,
		models.CtrlExposure: 999999,
	})
	wantKind(t, err, models.ErrKindOutOfRange)
	if got := control(t, r.s, models.CtrlVBlank).Value; got != 108 {
		t.Errorf("vblank = %d, want 108", got)
	}
	if got := r.s.State().VTS; got != 2300 {
		t.Errorf("VTS = %d, want 2300", got)
	}
	if w := r.mock.Writes(); len(w) != 0 {
		t.Errorf("rejected batch wrote %+v", w)
	}

	err = r.s.SetControls(context.Background(), map[models.ControlID]int64{
		models.CtrlVBlank: 100,
		"brightness":      1,
	})
	wantKind(t, err, models.ErrKindNotFound)
	if got := control(t, r.s, models.CtrlVBlank).Value; got != 108 {
		t.Errorf("vblank = %d after unknown control, want 108", got)
	}
}

func TestSetControlsUsesNewFrameLength(t *testing.T) {
	r := newPoweredRig(t)
	// 3000 only fits once vblank grows the frame to 3192 lines.
	err := r.s.SetControls(context.Background(), map[models.ControlID]int64{
		models.CtrlExposure: 3000,
		models.CtrlVBlank:   1000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := control(t, r.s, models.CtrlExposure).Value; got != 3000 {
		t.Errorf("exposure = %d, want 3000", got)
	}
	w := r.mock.Writes()
	if len(w) == 0 || w[0] != (hardware.RegVal{Reg: hardware.RegHold, Val: hardware.HoldStart}) ||
		w[len(w)-1] != (hardware.RegVal{Reg: hardware.RegHold, Val: hardware.HoldEnd}) {
		t.Errorf("batch not wrapped in group hold: %+v", w)
	}
	shr0 := hardware.Join20(r.mock.GetReg(hardware.RegExpH), r.mock.GetReg(hardware.RegExpM), r.mock.GetReg(hardware.RegExpL))
	if shr0 != 192 {
		t.Errorf("SHR0 = %d, want 192", shr0)
	}
}
