package config

import (
	"log/slog"

	"github.com/micro-nova/imx415-go/internal/models"
)

// controlAliases maps the short names accepted in config files to control
// names.
var controlAliases = map[string]models.ControlID{
	"vblank":      models.CtrlVBlank,
	"hblank":      models.CtrlHBlank,
	"gain":        models.CtrlAnalogGain,
	"analog_gain": models.CtrlAnalogGain,
	"hflip":       models.CtrlHFlip,
	"vflip":       models.CtrlVFlip,
	"mirror":      models.CtrlHFlip,
	"flip":        models.CtrlVFlip,
}

// normalize rewrites aliased control names and fills fields a hand-written
// file may leave empty.
func normalize(d *Device) {
	def := Defaults()
	if d.Addr == 0 {
		d.Addr = def.Addr
	}
	if d.HTTPAddr == "" {
		d.HTTPAddr = def.HTTPAddr
	}
	for name, v := range d.Controls {
		id, ok := controlAliases[name]
		if !ok {
			continue
		}
		if _, dup := d.Controls[string(id)]; dup {
			slog.Warn("config: control set twice, alias ignored", "alias", name, "control", id)
		} else {
			d.Controls[string(id)] = v
		}
		delete(d.Controls, name)
	}
}
