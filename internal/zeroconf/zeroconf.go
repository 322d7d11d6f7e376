// Package zeroconf advertises the sensor control API as an mDNS/DNS-SD
// service so that capture hosts can find it on the LAN.
package zeroconf

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/micro-nova/imx415-go/internal/models"
)

const serviceType = "_imx415._tcp"

// Service manages mDNS service registration.
type Service struct {
	name string // instance name, e.g. "imx415"
	port int

	mu     sync.Mutex
	txt    []string
	server *zeroconf.Server
}

// New creates a Service advertising the API on port.
func New(name string, port int) *Service {
	return &Service{
		name: name,
		port: port,
		txt:  []string{"model=IMX415", "path=/api"},
	}
}

// TXT returns the TXT records describing the session in st.
func TXT(st models.State) []string {
	return []string{
		"model=IMX415",
		"path=/api",
		fmt.Sprintf("lanes=%d", st.Lanes),
		fmt.Sprintf("width=%d", st.Mode.Width),
		fmt.Sprintf("height=%d", st.Mode.Height),
		fmt.Sprintf("format=0x%04x", st.Mode.Code),
	}
}

// Start registers the service and blocks until ctx is cancelled, at which
// point it shuts down the server.
func (s *Service) Start(ctx context.Context) error {
	if err := s.register(); err != nil {
		return err
	}

	<-ctx.Done()

	s.mu.Lock()
	if s.server != nil {
		s.server.Shutdown()
		s.server = nil
	}
	s.mu.Unlock()
	slog.Info("zeroconf: mDNS service unregistered")
	return nil
}

func (s *Service) register() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	server, err := zeroconf.Register(
		s.name,      // instance name
		serviceType, // service type
		"local.",    // domain
		s.port,      // port
		s.txt,       // TXT records
		nil,         // ifaces: nil means all interfaces
	)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	s.server = server
	slog.Info("zeroconf: registered mDNS service",
		"name", s.name,
		"port", s.port,
		"txt", s.txt,
	)
	return nil
}

// UpdateTXT replaces the TXT records. Before Start the records are only
// stored. grandcat/zeroconf has no live TXT update, so a running
// registration is shut down and registered again.
func (s *Service) UpdateTXT(records []string) error {
	s.mu.Lock()
	s.txt = append([]string(nil), records...)
	running := s.server
	s.server = nil
	s.mu.Unlock()

	if running == nil {
		return nil
	}
	running.Shutdown()
	return s.register()
}
