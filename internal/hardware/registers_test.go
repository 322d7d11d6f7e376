package hardware_test

import (
	"testing"

	"github.com/micro-nova/imx415-go/internal/hardware"
)

func TestSplitGain(t *testing.T) {
	tests := []struct {
		v    uint32
		h, l byte
	}{
		{0x000, 0x00, 0x00},
		{0x0F0, 0x00, 0xF0},
		{0x1FF, 0x01, 0xFF},
		{0x7AB, 0x07, 0xAB},
		{0xFAB, 0x07, 0xAB}, // bit 11 is not part of the field
	}
	for _, tc := range tests {
		h, l := hardware.SplitGain(tc.v)
		if h != tc.h || l != tc.l {
			t.Errorf("SplitGain(0x%03X) = (0x%02X, 0x%02X), want (0x%02X, 0x%02X)", tc.v, h, l, tc.h, tc.l)
		}
	}
}

func TestSplit20(t *testing.T) {
	h, m, l := hardware.Split20(0xABCDE)
	if h != 0x0A || m != 0xBC || l != 0xDE {
		t.Errorf("Split20(0xABCDE) = (0x%02X, 0x%02X, 0x%02X)", h, m, l)
	}
	// Bits above 19 are dropped.
	h, _, _ = hardware.Split20(0xF00000)
	if h != 0 {
		t.Errorf("Split20 high nibble = 0x%02X, want 0", h)
	}
}

func TestVTSRoundTrip(t *testing.T) {
	for v := uint32(0); v <= 0x7FFFF; v += 7 {
		h, m, l := hardware.Split20(v)
		if got := hardware.Join20(h, m, l); got != v {
			t.Fatalf("Join20(Split20(0x%05X)) = 0x%05X", v, got)
		}
	}
	for _, v := range []uint32{0x7FFFF, 0x7FFF, 0x08FC, 2192 + 46} {
		h, m, l := hardware.Split20(v)
		if got := hardware.Join20(h, m, l); got != v {
			t.Errorf("Join20(Split20(0x%05X)) = 0x%05X", v, got)
		}
	}
}

func TestVTSWritesAddresses(t *testing.T) {
	writes := hardware.VTSWrites(0x08FC)
	want := []hardware.RegWrite{
		{Reg: hardware.RegVTSL, Width: 1, Val: 0xFC},
		{Reg: hardware.RegVTSM, Width: 1, Val: 0x08},
		{Reg: hardware.RegVTSH, Width: 1, Val: 0x00},
	}
	if len(writes) != len(want) {
		t.Fatalf("got %d writes, want %d", len(writes), len(want))
	}
	for i := range want {
		if writes[i] != want[i] {
			t.Errorf("write[%d] = %+v, want %+v", i, writes[i], want[i])
		}
	}
}

func TestSetFlipBit(t *testing.T) {
	tests := []struct {
		in   byte
		mask byte
		on   bool
		want byte
	}{
		{0x00, hardware.MirrorMask, true, 0x01},
		{0x02, hardware.MirrorMask, true, 0x03},
		{0x03, hardware.MirrorMask, false, 0x02},
		{0x01, hardware.FlipMask, true, 0x03},
		{0x03, hardware.FlipMask, false, 0x01},
		{0xF0, hardware.FlipMask, false, 0xF0},
	}
	for _, tc := range tests {
		if got := hardware.SetFlipBit(tc.in, tc.mask, tc.on); got != tc.want {
			t.Errorf("SetFlipBit(0x%02X, 0x%02X, %v) = 0x%02X, want 0x%02X", tc.in, tc.mask, tc.on, got, tc.want)
		}
	}
}

func TestLaneModeValue(t *testing.T) {
	if v, ok := hardware.LaneModeValue(2); !ok || v != 0x01 {
		t.Errorf("LaneModeValue(2) = 0x%02X, %v", v, ok)
	}
	if v, ok := hardware.LaneModeValue(4); !ok || v != 0x03 {
		t.Errorf("LaneModeValue(4) = 0x%02X, %v", v, ok)
	}
	for _, n := range []int{0, 1, 3, 8} {
		if _, ok := hardware.LaneModeValue(n); ok {
			t.Errorf("LaneModeValue(%d) accepted", n)
		}
	}
}
