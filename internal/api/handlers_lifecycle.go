package api

import (
	"net/http"
)

func (h *Handlers) setStream(w http.ResponseWriter, r *http.Request) {
	on, err := onOffParam(r, "state")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.sess.SetStream(r.Context(), on); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sess.State())
}

func (h *Handlers) setPower(w http.ResponseWriter, r *http.Request) {
	on, err := onOffParam(r, "state")
	if err != nil {
		writeError(w, err)
		return
	}
	if on {
		err = h.sess.PowerOn(r.Context())
	} else {
		err = h.sess.PowerOff()
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.sess.State())
}

func (h *Handlers) identify(w http.ResponseWriter, r *http.Request) {
	if err := h.sess.Identify(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"model": "IMX415"})
}
