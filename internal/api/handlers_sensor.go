package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/micro-nova/imx415-go/internal/models"
	"github.com/micro-nova/imx415-go/internal/sensor"
)

// modeRequest selects a mode by format and size. With Try set the best fit
// is reported without changing the session.
type modeRequest struct {
	Code   uint32 `json:"code"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
	Try    bool   `json:"try"`
}

func (h *Handlers) getState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.State())
}

func (h *Handlers) getModes(w http.ResponseWriter, r *http.Request) {
	modes := sensor.Modes()
	out := make([]models.ModeInfo, 0, len(modes))
	for i := range modes {
		out = append(out, modes[i].Info())
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getMode(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.State().Mode)
}

func (h *Handlers) setMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Code == 0 {
		req.Code = sensor.FormatSGBRG10
	}
	if req.Try {
		writeJSON(w, http.StatusOK, h.sess.TryFormat(req.Code, req.Width, req.Height))
		return
	}
	info, err := h.sess.SetFormat(req.Code, req.Width, req.Height)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handlers) getSelection(w http.ResponseWriter, r *http.Request) {
	target := sensor.SelectionTarget(chi.URLParam(r, "target"))
	rect, err := sensor.Selection(target)
	if err != nil {
		writeError(w, models.ErrBadRequest(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, rect)
}
