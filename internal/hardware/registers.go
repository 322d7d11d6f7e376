package hardware

// Register addresses from the IMX415 register map.
const (
	RegChipID   Register = 0x311A // Chip identity (read-only)
	RegStandby  Register = 0x3000 // 1=standby, 0=streaming
	RegHold     Register = 0x3001 // Group hold: 1=start, 0=end
	RegXMSTA    Register = 0x3002 // Master mode start: 0=start, 1=stop
	RegLaneMode Register = 0x4001 // MIPI lane count

	RegGainL Register = 0x3090 // Analog gain bits [7:0]
	RegGainH Register = 0x3091 // Analog gain bits [10:8]

	RegExpL Register = 0x3050 // SHR0 bits [7:0]
	RegExpM Register = 0x3051 // SHR0 bits [15:8]
	RegExpH Register = 0x3052 // SHR0 bits [19:16]

	RegVTSL Register = 0x3024 // VMAX bits [7:0]
	RegVTSM Register = 0x3025 // VMAX bits [15:8]
	RegVTSH Register = 0x3026 // VMAX bits [19:16]

	RegHTSL Register = 0x3028 // HMAX bits [7:0]
	RegHTSH Register = 0x3029 // HMAX bits [15:8]

	RegFlip Register = 0x3030 // bit0=mirror (horizontal), bit1=flip (vertical)

	// RegNull terminates a register table. It is never written.
	RegNull Register = 0xFFFF
)

// Register values.
const (
	ChipID     byte = 0xE0
	StandbyOn  byte = 0x01
	StandbyOff byte = 0x00
	HoldStart  byte = 0x01
	HoldEnd    byte = 0x00
	LaneMode2  byte = 0x01
	LaneMode4  byte = 0x03
	MirrorMask byte = 1 << 0
	FlipMask   byte = 1 << 1
)

// SplitGain splits a 12-bit analog gain into its high (bits 8-10) and low
// (bits 0-7) register bytes.
func SplitGain(v uint32) (h, l byte) {
	return byte((v >> 8) & 0x07), byte(v & 0xFF)
}

// Split20 splits a 20-bit value across three register bytes:
// h = bits 16-19, m = bits 8-15, l = bits 0-7.
// Used for SHR0 (exposure) and VMAX (VTS).
func Split20(v uint32) (h, m, l byte) {
	return byte((v >> 16) & 0x0F), byte((v >> 8) & 0xFF), byte(v & 0xFF)
}

// Join20 reassembles a 20-bit value from its three register bytes.
func Join20(h, m, l byte) uint32 {
	return uint32(h&0x0F)<<16 | uint32(m)<<8 | uint32(l)
}

// GainWrites returns the single-byte writes that program analog gain v.
func GainWrites(v uint32) []RegWrite {
	h, l := SplitGain(v)
	return []RegWrite{
		{Reg: RegGainH, Width: Width8, Val: uint32(h)},
		{Reg: RegGainL, Width: Width8, Val: uint32(l)},
	}
}

// ExposureWrites returns the single-byte writes that program shutter value shr0.
func ExposureWrites(shr0 uint32) []RegWrite {
	h, m, l := Split20(shr0)
	return []RegWrite{
		{Reg: RegExpL, Width: Width8, Val: uint32(l)},
		{Reg: RegExpM, Width: Width8, Val: uint32(m)},
		{Reg: RegExpH, Width: Width8, Val: uint32(h)},
	}
}

// VTSWrites returns the single-byte writes that program frame length vts.
func VTSWrites(vts uint32) []RegWrite {
	h, m, l := Split20(vts)
	return []RegWrite{
		{Reg: RegVTSL, Width: Width8, Val: uint32(l)},
		{Reg: RegVTSM, Width: Width8, Val: uint32(m)},
		{Reg: RegVTSH, Width: Width8, Val: uint32(h)},
	}
}

// SetFlipBit sets or clears mask in the flip register byte b, preserving
// the other bits.
func SetFlipBit(b, mask byte, on bool) byte {
	if on {
		return b | mask
	}
	return b &^ mask
}

// LaneModeValue returns the lane-mode register value for a lane count.
// ok is false for unsupported lane counts.
func LaneModeValue(lanes int) (val byte, ok bool) {
	switch lanes {
	case 2:
		return LaneMode2, true
	case 4:
		return LaneMode4, true
	default:
		return 0, false
	}
}
