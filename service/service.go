package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/collapsinghierarchy/rfidgate/clock"
	"github.com/collapsinghierarchy/rfidgate/model"
	"github.com/collapsinghierarchy/rfidgate/store"
)

// MaxNameLen bounds a holder name in bytes.
const MaxNameLen = 64

var (
	ErrMissingUID   = errors.New("no uid scanned")
	ErrInvalidUID   = errors.New("uid is not colon-separated hex bytes")
	ErrInvalidRole  = errors.New("role must be A or U")
	ErrInvalidName  = errors.New("name must be a single line of at most 64 characters")
	ErrDuplicateUID = errors.New("uid already exists")
)

// Service is the registration side of provisioning mode. The web handlers
// and the control loop share it, so its small state is mutex-guarded.
type Service struct {
	Store store.Store // dependency-injected record store
	clock clock.Clock

	mu           sync.Mutex
	lastUID      string
	lastActivity time.Time
}

func New(st store.Store, c clock.Clock) *Service {
	return &Service{Store: st, clock: c, lastActivity: c.Now()}
}

// Reset clears the last scanned uid and restarts the idle timer; called on
// every activation.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUID = ""
	s.lastActivity = s.clock.Now()
}

func (s *Service) ObserveScan(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUID = model.NormalizeUID(uid)
	s.lastActivity = s.clock.Now()
}

// LastScanned returns "" until a tag has been seen.
func (s *Service) LastScanned() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUID
}

func (s *Service) Touch() {
	s.mu.Lock()
	s.lastActivity = s.clock.Now()
	s.mu.Unlock()
}

// Idle returns how long it has been since the last scan or request.
func (s *Service) Idle(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastActivity)
}

// Register validates the form input, refuses uids already on the list, and
// appends a new record.
func (s *Service) Register(ctx context.Context, uid, name, role string) (model.UidRecord, error) {
	uid = model.NormalizeUID(uid)
	if uid == "" {
		return model.UidRecord{}, ErrMissingUID
	}
	if !model.ValidUID(uid) {
		return model.UidRecord{}, ErrInvalidUID
	}
	r, err := model.ParseRole(role)
	if err != nil {
		return model.UidRecord{}, ErrInvalidRole
	}
	if len(name) > MaxNameLen || strings.ContainsAny(name, "\r\n") {
		return model.UidRecord{}, ErrInvalidName
	}

	_, exists, err := s.Store.Lookup(ctx, uid)
	if err != nil {
		return model.UidRecord{}, fmt.Errorf("duplicate check: %w", err)
	}
	if exists {
		return model.UidRecord{}, ErrDuplicateUID
	}

	rec := model.UidRecord{UID: uid, Name: name, Role: r}.Normalized()
	if err := s.Store.Insert(ctx, rec); err != nil {
		log.Printf("register %s: %v", uid, err)
		return model.UidRecord{}, err
	}
	log.Printf("registered uid %s via provisioning: %q (%s)", rec.UID, rec.Name, rec.Role)
	return rec, nil
}
