// Package sensor holds the IMX415 mode catalog: the compiled-in modes with
// their timing and register tables, best-fit mode selection and the pixel
// array geometry.
package sensor

import (
	"fmt"

	"github.com/micro-nova/imx415-go/internal/hardware"
	"github.com/micro-nova/imx415-go/internal/models"
	"periph.io/x/conn/v3/physic"
)

// Media-bus pixel codes.
const (
	FormatSGBRG10 uint32 = 0x300e // MEDIA_BUS_FMT_SGBRG10_1X10
)

// Sensor timing limits.
const (
	VTSMax         = 0x7FFF
	ExposureMargin = 4  // exposure must stay this many lines below VTS
	VBlankMin      = 46 // VMAX >= height + 46
	ExposureMin    = 8
	ExposureStep   = 1
	GainMin        = 0x00
	GainMax        = 0xF0
	GainStep       = 1
	GainDefault    = 0x00
)

// LinkFrequencies is the MIPI link-frequency menu, indexed by a mode's
// LinkFreqIndex.
var LinkFrequencies = []physic.Frequency{
	891 * physic.MegaHertz,
}

// Mode is an immutable catalog entry.
type Mode struct {
	Format        uint32
	Width         uint32
	Height        uint32
	Interval      models.Interval // default frame interval
	HTS           uint32          // default horizontal total size
	VTS           uint32          // default vertical total size
	Exposure      uint32          // default exposure, in lines
	BitsPerPixel  uint32
	LinkFreqIndex int
	Regs          []hardware.RegVal // terminated by RegNull
}

var modes = []Mode{
	{
		Format:        FormatSGBRG10,
		Width:         3864,
		Height:        2192,
		Interval:      models.Interval{Numerator: 10000, Denominator: 300000},
		HTS:           0x044c * 2 * 2,
		VTS:           0x08fc,
		Exposure:      0x08fc - 0x08,
		BitsPerPixel:  10,
		LinkFreqIndex: 0,
		Regs:          linear10bit3864x2192At891M,
	},
}

// Modes returns the catalog. Callers must not modify the entries.
func Modes() []Mode {
	return modes
}

// Default returns catalog entry 0.
func Default() *Mode {
	return &modes[0]
}

// FindBestFit returns the catalog entry with the requested pixel format
// whose size is closest to width x height (Manhattan distance). Ties keep
// the lowest catalog index. When no entry carries the format, entry 0 is
// returned.
func FindBestFit(format, width, height uint32) *Mode {
	return findBestFit(modes, format, width, height)
}

func findBestFit(catalog []Mode, format, width, height uint32) *Mode {
	best, bestDist := 0, -1
	for i := range catalog {
		m := &catalog[i]
		if m.Format != format {
			continue
		}
		d := absDiff(m.Width, width) + absDiff(m.Height, height)
		if bestDist == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return &catalog[best]
}

func absDiff(a, b uint32) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// Validate checks the catalog invariants for m.
func (m *Mode) Validate() error {
	switch {
	case m.Width%2 != 0 || m.Height%2 != 0:
		return fmt.Errorf("mode %dx%d: dimensions must be even", m.Width, m.Height)
	case m.HTS < m.Width:
		return fmt.Errorf("mode %dx%d: HTS %d below width", m.Width, m.Height, m.HTS)
	case m.VTS < m.Height:
		return fmt.Errorf("mode %dx%d: VTS %d below height", m.Width, m.Height, m.VTS)
	case m.Exposure >= m.VTS-ExposureMargin:
		return fmt.Errorf("mode %dx%d: default exposure %d not below VTS-%d", m.Width, m.Height, m.Exposure, ExposureMargin)
	case m.LinkFreqIndex < 0 || m.LinkFreqIndex >= len(LinkFrequencies):
		return fmt.Errorf("mode %dx%d: link frequency index %d out of table", m.Width, m.Height, m.LinkFreqIndex)
	case len(m.Regs) == 0 || m.Regs[len(m.Regs)-1].Reg != hardware.RegNull:
		return fmt.Errorf("mode %dx%d: register table not terminated", m.Width, m.Height)
	}
	return nil
}

// HBlank returns the fixed horizontal blanking of m.
func (m *Mode) HBlank() int64 {
	return int64(m.HTS) - int64(m.Width)
}

// VBlankDefault returns the vertical blanking at the mode's default VTS.
func (m *Mode) VBlankDefault() int64 {
	return int64(m.VTS) - int64(m.Height)
}

// VBlankMax returns the largest vertical blanking the sensor accepts in m.
func (m *Mode) VBlankMax() int64 {
	return VTSMax - int64(m.Height)
}

// Info returns the API description of m.
func (m *Mode) Info() models.ModeInfo {
	return models.ModeInfo{
		Format:        models.Format{Code: m.Format, Width: m.Width, Height: m.Height},
		Interval:      m.Interval,
		HTS:           m.HTS,
		VTS:           m.VTS,
		Exposure:      m.Exposure,
		BitsPerPixel:  m.BitsPerPixel,
		LinkFreqIndex: m.LinkFreqIndex,
	}
}

// PixelRate returns link_frequency * 2 * lanes / bpp, in pixels per second.
func PixelRate(linkFreq physic.Frequency, lanes int, bpp uint32) uint64 {
	hz := uint64(linkFreq / physic.Hertz)
	return hz * 2 * uint64(lanes) / uint64(bpp)
}
