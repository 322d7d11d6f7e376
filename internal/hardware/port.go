package hardware

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
	"periph.io/x/conn/v3"
)

// Observer is notified after every register transaction.
type Observer func(op string, reg Register, err error)

// Port is the register access port to one sensor. Register addresses are
// sent big-endian (2 bytes) followed by up to 4 big-endian value bytes.
// Port is safe for concurrent use; transactions are serialized.
type Port struct {
	mu      sync.Mutex
	c       conn.Conn
	limiter *rate.Limiter
	observe Observer
}

// PortOption configures a Port.
type PortOption func(*Port)

// WithRateLimit paces transactions to at most opsPerSec.
func WithRateLimit(opsPerSec int) PortOption {
	return func(p *Port) {
		p.limiter = rate.NewLimiter(rate.Limit(opsPerSec), 10)
	}
}

// WithObserver installs a transaction observer (used for metrics).
func WithObserver(fn Observer) PortOption {
	return func(p *Port) {
		p.observe = fn
	}
}

// NewPort returns a register port over c, typically an *i2c.Dev.
func NewPort(c conn.Conn, opts ...PortOption) *Port {
	p := &Port{c: c}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// String returns the underlying connection name.
func (p *Port) String() string { return p.c.String() }

// Read reads width bytes (1..4) starting at reg and returns them as a
// big-endian value.
func (p *Port) Read(ctx context.Context, reg Register, width int) (uint32, error) {
	if width < 1 || width > 4 {
		return 0, WidthError{Width: width}
	}
	if err := p.wait(ctx); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	// Combined write (address) + read with REPEATED START.
	w := [2]byte{byte(reg >> 8), byte(reg)}
	r := make([]byte, width)
	err := p.c.Tx(w[:], r)
	p.notify("read", reg, err)
	if err != nil {
		return 0, &IOError{Op: "read", Reg: reg, Err: err}
	}
	var val uint32
	for _, b := range r {
		val = val<<8 | uint32(b)
	}
	return val, nil
}

// Write writes the low width bytes (1..4) of val big-endian starting at reg.
func (p *Port) Write(ctx context.Context, reg Register, width int, val uint32) error {
	if width < 1 || width > 4 {
		return WidthError{Width: width}
	}
	if err := p.wait(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	buf := make([]byte, 2+width)
	buf[0] = byte(reg >> 8)
	buf[1] = byte(reg)
	for i := 0; i < width; i++ {
		buf[2+i] = byte(val >> (8 * uint(width-1-i)))
	}
	err := p.c.Tx(buf, nil)
	p.notify("write", reg, err)
	if err != nil {
		return &IOError{Op: "write", Reg: reg, Err: err}
	}
	return nil
}

// ApplyTable writes each table entry as a single-byte write, in order, up
// to the RegNull sentinel. It stops at the first failure.
func (p *Port) ApplyTable(ctx context.Context, table []RegVal) error {
	for _, rv := range table {
		if rv.Reg == RegNull {
			return nil
		}
		if err := p.Write(ctx, rv.Reg, Width8, uint32(rv.Val)); err != nil {
			return err
		}
	}
	return nil
}

// WriteAll issues every write even when an earlier one fails, then returns
// the first error. A multi-byte logical value split across registers only
// takes effect when all sub-writes land, so all of them are attempted.
func (p *Port) WriteAll(ctx context.Context, writes ...RegWrite) error {
	var first error
	for _, w := range writes {
		if err := p.Write(ctx, w.Reg, w.Width, w.Val); err != nil {
			slog.Debug("i2c: sub-write failed", "reg", hexReg(w.Reg), "err", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (p *Port) wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}

func (p *Port) notify(op string, reg Register, err error) {
	if p.observe != nil {
		p.observe(op, reg, err)
	}
}
