package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/micro-nova/imx415-go/internal/hardware"
	"github.com/micro-nova/imx415-go/internal/models"
)

type registerValue struct {
	Addr  string `json:"addr"`
	Width int    `json:"width"`
	Value uint32 `json:"value"`
}

type registerWrite struct {
	Width int     `json:"width"`
	Value *uint32 `json:"value"`
}

func (h *Handlers) readRegister(w http.ResponseWriter, r *http.Request) {
	reg, err := regParam(r, "addr")
	if err != nil {
		writeError(w, err)
		return
	}
	width := hardware.Width8
	if s := r.URL.Query().Get("width"); s != "" {
		if width, err = strconv.Atoi(s); err != nil {
			writeError(w, models.ErrBadRequest("invalid width parameter"))
			return
		}
	}
	v, err := h.sess.ReadRegister(r.Context(), reg, width)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, registerValue{Addr: fmt.Sprintf("0x%04x", reg), Width: width, Value: v})
}

func (h *Handlers) writeRegister(w http.ResponseWriter, r *http.Request) {
	reg, err := regParam(r, "addr")
	if err != nil {
		writeError(w, err)
		return
	}
	var req registerWrite
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Value == nil {
		writeError(w, models.ErrBadRequest("value is required"))
		return
	}
	if req.Width == 0 {
		req.Width = hardware.Width8
	}
	if err := h.sess.WriteRegister(r.Context(), reg, req.Width, *req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, registerValue{Addr: fmt.Sprintf("0x%04x", reg), Width: req.Width, Value: *req.Value})
}
