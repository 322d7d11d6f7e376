// Package models defines the data structures shared by the sensor session,
// the event bus and the control API.
package models

// ControlID names a sensor control.
type ControlID string

const (
	CtrlLinkFrequency ControlID = "link_frequency"      // read-only menu index
	CtrlPixelRate     ControlID = "pixel_rate"          // derived, read-only
	CtrlHBlank        ControlID = "horizontal_blanking" // read-only, fixed per mode
	CtrlVBlank        ControlID = "vertical_blanking"
	CtrlExposure      ControlID = "exposure"
	CtrlAnalogGain    ControlID = "analogue_gain"
	CtrlHFlip         ControlID = "horizontal_flip"
	CtrlVFlip         ControlID = "vertical_flip"
)

// ControlIDs lists every control in presentation order.
var ControlIDs = []ControlID{
	CtrlLinkFrequency,
	CtrlPixelRate,
	CtrlHBlank,
	CtrlVBlank,
	CtrlExposure,
	CtrlAnalogGain,
	CtrlHFlip,
	CtrlVFlip,
}

// IsControlID reports whether name is a known control.
func IsControlID(name string) bool {
	for _, id := range ControlIDs {
		if string(id) == name {
			return true
		}
	}
	return false
}

// ControlInfo is a control's current value and legal range.
type ControlInfo struct {
	ID       ControlID `json:"id"`
	Value    int64     `json:"value"`
	Min      int64     `json:"min"`
	Max      int64     `json:"max"`
	Step     int64     `json:"step"`
	Default  int64     `json:"default"`
	ReadOnly bool      `json:"read_only"`
}

// Format is a media-bus format: pixel code plus frame size.
type Format struct {
	Code   uint32 `json:"code"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Interval is a frame interval in seconds, as a fraction.
type Interval struct {
	Numerator   uint32 `json:"numerator"`
	Denominator uint32 `json:"denominator"`
}

// ModeInfo describes a sensor mode.
type ModeInfo struct {
	Format
	Interval      Interval `json:"interval"`
	HTS           uint32   `json:"hts"`
	VTS           uint32   `json:"vts"`
	Exposure      uint32   `json:"exposure"`
	BitsPerPixel  uint32   `json:"bpp"`
	LinkFreqIndex int      `json:"link_freq_index"`
}

// State is a snapshot of a sensor session.
type State struct {
	Mode      ModeInfo      `json:"mode"`
	VTS       uint32        `json:"vts"`
	Lanes     int           `json:"lanes"`
	PixelRate uint64        `json:"pixel_rate"`
	Powered   bool          `json:"powered"`
	Streaming bool          `json:"streaming"`
	Controls  []ControlInfo `json:"controls"`
}

// Control returns the named control from the snapshot.
func (s State) Control(id ControlID) (ControlInfo, bool) {
	for _, c := range s.Controls {
		if c.ID == id {
			return c, true
		}
	}
	return ControlInfo{}, false
}

// EventKind classifies a state change.
type EventKind string

const (
	EventSnapshot EventKind = "snapshot" // initial state sent to a new subscriber
	EventMode     EventKind = "mode"
	EventControl  EventKind = "control"
	EventStream   EventKind = "stream"
	EventPower    EventKind = "power"
)

// Event is published after every session mutation.
type Event struct {
	Seq     uint64    `json:"seq"`
	Kind    EventKind `json:"kind"`
	Control ControlID `json:"control,omitempty"`
	State   State     `json:"state"`
}
