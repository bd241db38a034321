// Package controller runs the door: it polls the tag reader, checks each
// tag against the record store, drives the lock, and relocks after a fixed
// window. Every failure on the way resolves to a locked door.
package controller

import (
	"context"
	"log"
	"time"

	"github.com/collapsinghierarchy/rfidgate/clock"
	"github.com/collapsinghierarchy/rfidgate/hardware"
	"github.com/collapsinghierarchy/rfidgate/model"
	"github.com/collapsinghierarchy/rfidgate/store"
)

type Door int

const (
	Locked Door = iota
	Unlocked
)

func (d Door) String() string {
	if d == Unlocked {
		return "unlocked"
	}
	return "locked"
}

// State is everything the loop carries from one iteration to the next.
type State struct {
	Door        Door
	UnlockedAt  time.Time
	LastScanned string
	// ArmedUntil is set by a mode-button press; an admin tag presented
	// before it passes starts provisioning.
	ArmedUntil time.Time
}

// Provisioner is the transient registration mode.
type Provisioner interface {
	Active() bool
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	ObserveScan(uid string)
	Idle(now time.Time) time.Duration
}

type Config struct {
	UnlockFor            time.Duration
	PollInterval         time.Duration
	ArmWindow            time.Duration
	ProvisionIdleTimeout time.Duration
	// ExtendOnRescan restarts the relock timer when an authorized tag is
	// presented while the door is already unlocked.
	ExtendOnRescan bool
}

func DefaultConfig() Config {
	return Config{
		UnlockFor:            7 * time.Second,
		PollInterval:         200 * time.Millisecond,
		ArmWindow:            10 * time.Second,
		ProvisionIdleTimeout: 5 * time.Minute,
	}
}

type Controller struct {
	cfg      Config
	store    store.Store
	reader   hardware.TagReader
	actuator hardware.Actuator
	buzzer   hardware.Buzzer
	clock    clock.Clock

	button hardware.Button
	prov   Provisioner
}

type Option func(*Controller)

func WithButton(b hardware.Button) Option { return func(c *Controller) { c.button = b } }

func WithProvisioner(p Provisioner) Option { return func(c *Controller) { c.prov = p } }

func New(cfg Config, st store.Store, r hardware.TagReader, a hardware.Actuator, b hardware.Buzzer, clk clock.Clock, opts ...Option) *Controller {
	c := &Controller{cfg: cfg, store: st, reader: r, actuator: a, buzzer: b, clock: clk}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Init releases the actuator and returns the initial locked state.
func (c *Controller) Init() (State, error) {
	if err := c.actuator.SetEnergized(false); err != nil {
		return State{}, err
	}
	log.Printf("lock initialized (locked)")
	return State{Door: Locked}, nil
}

// Run steps the state machine every PollInterval until ctx is done, then
// locks the door and stops provisioning.
func (c *Controller) Run(ctx context.Context) error {
	st, err := c.Init()
	if err != nil {
		return err
	}
	for {
		st = c.Step(ctx, st)
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-c.clock.After(c.cfg.PollInterval):
		}
	}
}

func (c *Controller) shutdown() {
	if err := c.actuator.SetEnergized(false); err != nil {
		log.Printf("lock on shutdown: %v", err)
	}
	if c.prov != nil && c.prov.Active() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.prov.Stop(ctx); err != nil {
			log.Printf("stop provisioning: %v", err)
		}
	}
}

// Step runs one iteration: read the reader, enforce the relock deadline,
// handle the mode button, then act on the scanned tag, if any.
func (c *Controller) Step(ctx context.Context, st State) State {
	uid, err := c.reader.Scan(ctx)
	if err != nil {
		log.Printf("tag read: %v", err)
		uid = ""
	}

	now := c.clock.Now()
	if st.Door == Unlocked && now.Sub(st.UnlockedAt) >= c.cfg.UnlockFor {
		st = c.lock(st)
		log.Printf("door auto-locked after %s", c.cfg.UnlockFor)
	}

	st = c.provisioning(ctx, st, now)

	if uid == "" {
		return st
	}
	st.LastScanned = uid
	log.Printf("scanned uid %s", uid)
	if c.prov != nil {
		c.prov.ObserveScan(uid)
	}

	rec, ok := c.authorize(ctx, uid)
	if !ok {
		log.Printf("access denied for %s", uid)
		c.feedback(ctx, hardware.DeniedTones)
		return c.lock(st)
	}

	if c.prov != nil && rec.IsAdmin() && now.Before(st.ArmedUntil) {
		st.ArmedUntil = time.Time{}
		c.feedback(ctx, hardware.SuccessTones)
		if err := c.prov.Start(ctx); err != nil {
			log.Printf("start provisioning: %v", err)
			c.feedback(ctx, hardware.DeniedTones)
		} else {
			log.Printf("provisioning started by %s (%s)", rec.Name, rec.UID)
		}
		return st
	}

	log.Printf("access granted to %q (%s)", rec.Name, rec.Role)
	c.feedback(ctx, hardware.SuccessTones)
	return c.unlock(st)
}

// authorize fails closed: malformed uids and store errors both deny.
func (c *Controller) authorize(ctx context.Context, uid string) (model.UidRecord, bool) {
	if !model.ValidUID(uid) {
		return model.UidRecord{}, false
	}
	rec, ok, err := c.store.Lookup(ctx, uid)
	if err != nil {
		log.Printf("lookup %s: %v", uid, err)
		return model.UidRecord{}, false
	}
	return rec, ok
}

func (c *Controller) provisioning(ctx context.Context, st State, now time.Time) State {
	if c.prov == nil {
		return st
	}
	pressed := c.button != nil && c.button.Pressed()
	switch {
	case c.prov.Active() && pressed:
		c.stopProvisioning(ctx, "exit requested")
	case c.prov.Active() && c.prov.Idle(now) >= c.cfg.ProvisionIdleTimeout:
		c.stopProvisioning(ctx, "inactivity timeout")
	case pressed:
		st.ArmedUntil = now.Add(c.cfg.ArmWindow)
		log.Printf("provisioning armed for %s; present an admin tag", c.cfg.ArmWindow)
	}
	return st
}

func (c *Controller) stopProvisioning(ctx context.Context, why string) {
	if err := c.prov.Stop(ctx); err != nil {
		log.Printf("stop provisioning: %v", err)
		return
	}
	log.Printf("provisioning stopped: %s", why)
}

func (c *Controller) unlock(st State) State {
	if st.Door == Unlocked && !c.cfg.ExtendOnRescan {
		return st
	}
	if err := c.actuator.SetEnergized(true); err != nil {
		log.Printf("unlock: %v", err)
		return c.lock(st)
	}
	if st.Door == Locked {
		log.Printf("door unlocked")
	}
	st.Door = Unlocked
	st.UnlockedAt = c.clock.Now()
	return st
}

func (c *Controller) lock(st State) State {
	if err := c.actuator.SetEnergized(false); err != nil {
		log.Printf("lock: %v", err)
	}
	if st.Door == Unlocked {
		log.Printf("door locked")
	}
	st.Door = Locked
	st.UnlockedAt = time.Time{}
	return st
}

func (c *Controller) feedback(ctx context.Context, seq []hardware.Tone) {
	if err := c.buzzer.Play(ctx, seq); err != nil {
		log.Printf("buzzer: %v", err)
	}
}
