// Package api implements the HTTP control API of the sensor daemon.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/micro-nova/imx415-go/internal/hardware"
	"github.com/micro-nova/imx415-go/internal/models"
)

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	sess   Session
	events EventBus
}

// Session is the sensor session the handlers drive. *controller.Session
// implements it.
type Session interface {
	State() models.State
	TryFormat(format, width, height uint32) models.ModeInfo
	SetFormat(format, width, height uint32) (models.ModeInfo, error)
	Controls() []models.ControlInfo
	Control(id models.ControlID) (models.ControlInfo, error)
	SetControl(ctx context.Context, id models.ControlID, val int64) error
	SetControls(ctx context.Context, values map[models.ControlID]int64) error
	SetStream(ctx context.Context, on bool) error
	PowerOn(ctx context.Context) error
	PowerOff() error
	Identify(ctx context.Context) error
	ReadRegister(ctx context.Context, reg hardware.Register, width int) (uint32, error)
	WriteRegister(ctx context.Context, reg hardware.Register, width int, val uint32) error
}

// EventBus is the interface for subscribing to session events.
type EventBus interface {
	Subscribe(id string) <-chan models.Event
	Unsubscribe(id string)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as a JSON response. Errors that are not an
// *models.AppError are reported as internal errors.
func writeError(w http.ResponseWriter, err error) {
	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		appErr = models.ErrInternal(err.Error())
	}
	body := *appErr
	body.Message = appErr.Error()
	writeJSON(w, appErr.Status, body)
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.ErrBadRequest("invalid JSON: " + err.Error())
	}
	return nil
}

// onOffParam reads an "on"/"off" path parameter.
func onOffParam(r *http.Request, name string) (bool, error) {
	switch chi.URLParam(r, name) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, models.ErrBadRequest(name + " must be on or off")
}

// regParam reads a register address path parameter (decimal or 0x hex).
func regParam(r *http.Request, name string) (hardware.Register, error) {
	n, err := strconv.ParseUint(chi.URLParam(r, name), 0, 16)
	if err != nil {
		return 0, models.ErrBadRequest("invalid " + name + " parameter")
	}
	return hardware.Register(n), nil
}
