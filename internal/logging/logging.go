// Package logging builds the slog handler used by the imx415 commands: text
// on stderr, or the systemd journal when the daemon runs as a unit whose
// stderr is connected to it.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

const identifier = "imx415"

// New returns the handler for w at level.
func New(w io.Writer, level slog.Leveler) slog.Handler {
	if OnJournal() {
		return NewJournalHandler(level)
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}

// OnJournal reports whether stderr is the systemd journal stream.
func OnJournal() bool {
	ok, err := journal.StderrIsJournalStream()
	return err == nil && ok && journal.Enabled()
}

// JournalHandler is a slog.Handler that sends records to the systemd
// journal. Attributes become upper-case journal fields; groups prefix them.
type JournalHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewJournalHandler creates a journal handler.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level}
}

func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	fields := map[string]string{"SYSLOG_IDENTIFIER": identifier}
	for _, a := range h.attrs {
		addField(fields, a, h.groups)
	}
	r.Attrs(func(a slog.Attr) bool {
		addField(fields, a, h.groups)
		return true
	})
	return journal.Send(r.Message, priority(r.Level), fields)
}

func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &cp
}

func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	cp.groups = append(append([]string(nil), h.groups...), name)
	return &cp
}

func priority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// fieldKey maps an attribute key to a journal field name: upper case,
// with anything outside [A-Z0-9_] replaced by '_'.
func fieldKey(groups []string, key string) string {
	if len(groups) > 0 {
		key = strings.Join(groups, "_") + "_" + key
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, key)
}

func addField(fields map[string]string, a slog.Attr, groups []string) {
	if a.Equal(slog.Attr{}) {
		return
	}
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		sub := append(append([]string(nil), groups...), a.Key)
		for _, ga := range v.Group() {
			addField(fields, ga, sub)
		}
		return
	}
	key := fieldKey(groups, a.Key)
	switch v.Kind() {
	case slog.KindString:
		fields[key] = v.String()
	case slog.KindDuration:
		fields[key] = v.Duration().String()
	default:
		fields[key] = fmt.Sprint(v.Any())
	}
}
