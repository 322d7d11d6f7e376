// Package hardware provides the hardware abstraction layer for the IMX415
// sensor: the register map and field codec, a register access port over any
// periph.io connection, the in-memory mock used by tests, and the power
// rails (external clock, supplies, XCLR reset line).
package hardware

import (
	"fmt"
)

// Register is a 16-bit sensor register address.
type Register = uint16

// Register value widths in bytes.
const (
	Width8  = 1
	Width16 = 2
	Width24 = 3
	Width32 = 4
)

// RegVal is one entry of a register table: a single-byte write.
type RegVal struct {
	Reg Register
	Val byte
}

// RegWrite is one logical register write of 1..4 bytes.
type RegWrite struct {
	Reg   Register
	Width int
	Val   uint32
}

// IOError is returned when a register transaction fails on the transport
// (NACK, short transfer, bus error).
type IOError struct {
	Op  string // "read" or "write"
	Reg Register
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("i2c: %s reg=0x%04x: %v", e.Op, e.Reg, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// WidthError is returned for a register width outside 1..4.
type WidthError struct {
	Width int
}

func (e WidthError) Error() string {
	return fmt.Sprintf("hardware: unsupported register width %d (want 1..4)", e.Width)
}
