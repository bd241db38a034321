// Package provision runs the transient registration mode: access point,
// web server, and the activity clock that ends it.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/collapsinghierarchy/rfidgate/service"
)

type AccessPoint interface {
	Up(ctx context.Context) error
	Down(ctx context.Context) error
}

// Session implements controller.Provisioner.
type Session struct {
	svc     *service.Service
	handler http.Handler
	addr    string
	ap      AccessPoint

	mu   sync.Mutex
	srv  *http.Server
	ln   net.Listener
	id   uuid.UUID
	done chan struct{}
}

func New(svc *service.Service, h http.Handler, addr string, ap AccessPoint) *Session {
	return &Session{svc: svc, handler: h, addr: addr, ap: ap}
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.srv != nil
}

// Addr is the bound listener address while active.
func (s *Session) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	if err := s.ap.Up(ctx); err != nil {
		return fmt.Errorf("access point: %w", err)
	}
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.ap.Down(ctx)
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}

	s.svc.Reset()
	s.id = uuid.New()
	s.ln = ln
	s.srv = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.done = make(chan struct{})

	go func(srv *http.Server, done chan struct{}, id uuid.UUID) {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("provisioning %s: serve: %v", id, err)
		}
	}(s.srv, s.done, s.id)

	log.Printf("provisioning %s: web server listening on %s", s.id, ln.Addr())
	return nil
}

func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return nil
	}

	err := s.srv.Shutdown(ctx)
	<-s.done
	if apErr := s.ap.Down(ctx); apErr != nil && err == nil {
		err = fmt.Errorf("access point: %w", apErr)
	}
	log.Printf("provisioning %s: web server stopped", s.id)
	s.srv, s.ln, s.done = nil, nil, nil
	return err
}

func (s *Session) ObserveScan(uid string) { s.svc.ObserveScan(uid) }

func (s *Session) Idle(now time.Time) time.Duration { return s.svc.Idle(now) }
