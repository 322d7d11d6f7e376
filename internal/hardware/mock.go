package hardware

import (
	"errors"
	"sync"

	"periph.io/x/conn/v3"
)

// ErrNACK is returned by the mock for injected transaction failures.
var ErrNACK = errors.New("mock: device did not acknowledge")

// Mock is a thread-safe in-memory IMX415 register bank implementing
// conn.Conn, for testing and development. Multi-byte transactions
// auto-increment the register address, as the sensor does.
type Mock struct {
	mu        sync.Mutex
	regs      map[Register]byte
	readOver  map[Register]byte // reads of these registers return a fixed value
	failAt    map[Register]bool // transactions touching these registers fail
	failWrite bool
	failRead  bool
	writes    []RegVal
	txCount   int
}

// NewMock creates a mock sensor that identifies correctly and powers up in
// software standby.
func NewMock() *Mock {
	m := &Mock{
		regs:     make(map[Register]byte),
		readOver: make(map[Register]byte),
		failAt:   make(map[Register]bool),
	}
	m.regs[RegChipID] = ChipID
	m.regs[RegStandby] = StandbyOn
	return m
}

// String implements conn.Conn.
func (m *Mock) String() string { return "imx415-mock" }

// Duplex implements conn.Conn.
func (m *Mock) Duplex() conn.Duplex { return conn.Half }

// Tx implements conn.Conn. w carries the 2-byte register address, followed
// by value bytes for a write; a non-empty r makes it a read.
func (m *Mock) Tx(w, r []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCount++
	if len(w) < 2 {
		return errors.New("mock: short register address")
	}
	base := Register(w[0])<<8 | Register(w[1])

	if len(r) > 0 {
		if m.failRead {
			return ErrNACK
		}
		for i := range r {
			reg := base + Register(i)
			if m.failAt[reg] {
				return ErrNACK
			}
			if v, ok := m.readOver[reg]; ok {
				r[i] = v
				continue
			}
			r[i] = m.regs[reg]
		}
		return nil
	}

	if m.failWrite {
		return ErrNACK
	}
	data := w[2:]
	for i := range data {
		if m.failAt[base+Register(i)] {
			return ErrNACK
		}
	}
	for i, b := range data {
		reg := base + Register(i)
		m.regs[reg] = b
		m.writes = append(m.writes, RegVal{Reg: reg, Val: b})
	}
	return nil
}

// SetFailWrite configures the mock to fail all write transactions.
func (m *Mock) SetFailWrite(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite = fail
}

// SetFailRead configures the mock to fail all read transactions.
func (m *Mock) SetFailRead(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRead = fail
}

// FailAt makes every transaction touching reg fail (or succeed again).
func (m *Mock) FailAt(reg Register, fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fail {
		m.failAt[reg] = true
	} else {
		delete(m.failAt, reg)
	}
}

// OverrideRead pins the value returned when reg is read, independent of
// what was written. Used to model read-back mismatches.
func (m *Mock) OverrideRead(reg Register, val byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOver[reg] = val
}

// SetReg presets a register value without logging a write.
func (m *Mock) SetReg(reg Register, val byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[reg] = val
}

// GetReg returns a register value for testing purposes.
func (m *Mock) GetReg(reg Register) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[reg]
}

// Writes returns the single-byte writes that landed, in order.
func (m *Mock) Writes() []RegVal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RegVal, len(m.writes))
	copy(out, m.writes)
	return out
}

// Transactions returns the number of Tx calls, including failed ones.
func (m *Mock) Transactions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txCount
}

// ResetLog clears the write log and transaction counter.
func (m *Mock) ResetLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
	m.txCount = 0
}

var _ conn.Conn = (*Mock)(nil)
