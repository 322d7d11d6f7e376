package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/micro-nova/imx415-go/internal/models"
)

type controlUpdate struct {
	Value *int64 `json:"value"`
}

func (h *Handlers) getControls(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.Controls())
}

func (h *Handlers) getControl(w http.ResponseWriter, r *http.Request) {
	c, err := h.sess.Control(models.ControlID(chi.URLParam(r, "name")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handlers) setControl(w http.ResponseWriter, r *http.Request) {
	id := models.ControlID(chi.URLParam(r, "name"))
	var upd controlUpdate
	if err := decodeBody(r, &upd); err != nil {
		writeError(w, err)
		return
	}
	if upd.Value == nil {
		writeError(w, models.ErrBadRequest("value is required"))
		return
	}
	if err := h.sess.SetControl(r.Context(), id, *upd.Value); err != nil {
		writeError(w, err)
		return
	}
	h.getControl(w, r)
}

// setControls applies several controls under one group hold, so they land
// on the same frame. Controls are applied in presentation order, which puts
// vertical blanking ahead of exposure. A rejected batch changes nothing.
func (h *Handlers) setControls(w http.ResponseWriter, r *http.Request) {
	var upd map[string]int64
	if err := decodeBody(r, &upd); err != nil {
		writeError(w, err)
		return
	}
	values := make(map[models.ControlID]int64, len(upd))
	for name, v := range upd {
		if !models.IsControlID(name) {
			writeError(w, models.ErrNotFound("unknown control "+name))
			return
		}
		values[models.ControlID(name)] = v
	}
	if err := h.sess.SetControls(r.Context(), values); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sess.Controls())
}
