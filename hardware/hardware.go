// Package hardware declares the device collaborators the access controller
// drives: the tag reader, the lock actuator, the buzzer and the mode button.
// Concrete drivers live in the periph and sim subpackages.
package hardware

import (
	"context"
	"time"

	"github.com/collapsinghierarchy/rfidgate/clock"
	"github.com/collapsinghierarchy/rfidgate/model"
)

// SerialReader is the raw reader primitive. It returns nil, nil when no
// card is in the field and must not block past ctx.
type SerialReader interface {
	ReadSerial(ctx context.Context) ([]byte, error)
}

// TagReader yields normalized UIDs; "" means no tag was present.
type TagReader interface {
	Scan(ctx context.Context) (string, error)
}

// Actuator is the lock output: energized means unlocked.
type Actuator interface {
	SetEnergized(on bool) error
}

type Buzzer interface {
	Play(ctx context.Context, seq []Tone) error
}

// Button reports whether a debounced press happened since the last call.
type Button interface {
	Pressed() bool
}

// ToneOutput is a square-wave generator.
type ToneOutput interface {
	On(hz int) error
	Off() error
}

type Tone struct {
	Hz       int
	Duration time.Duration
	Gap      time.Duration
}

var (
	SuccessTones = []Tone{
		{Hz: 1000, Duration: 100 * time.Millisecond},
		{Hz: 1500, Duration: 150 * time.Millisecond},
	}
	DeniedTones = []Tone{
		{Hz: 400, Duration: 120 * time.Millisecond, Gap: 60 * time.Millisecond},
		{Hz: 400, Duration: 120 * time.Millisecond},
	}
)

// Adapter turns raw serial bytes into canonical UID strings.
type Adapter struct {
	r SerialReader
}

func NewAdapter(r SerialReader) *Adapter { return &Adapter{r: r} }

func (a *Adapter) Scan(ctx context.Context) (string, error) {
	b, err := a.r.ReadSerial(ctx)
	if err != nil {
		return "", err
	}
	return model.FormatUID(b), nil
}

// Player plays tone sequences on a ToneOutput, timing them with a Clock.
type Player struct {
	out   ToneOutput
	clock clock.Clock
}

func NewPlayer(out ToneOutput, c clock.Clock) *Player {
	return &Player{out: out, clock: c}
}

func (p *Player) Play(ctx context.Context, seq []Tone) error {
	defer p.out.Off()
	for _, t := range seq {
		if err := p.out.On(t.Hz); err != nil {
			return err
		}
		if err := p.wait(ctx, t.Duration); err != nil {
			return err
		}
		if t.Gap > 0 {
			if err := p.out.Off(); err != nil {
				return err
			}
			if err := p.wait(ctx, t.Gap); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Player) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.clock.After(d):
		return nil
	}
}
