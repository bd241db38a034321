// Package periph drives the real board: an MFRC522 reader on SPI, the lock
// transistor and buzzer on GPIO, and a mode button.
package periph

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/mfrc522"
	"periph.io/x/host/v3"

	"github.com/collapsinghierarchy/rfidgate/clock"
)

type Pins struct {
	SPIPort  string
	Reset    string
	IRQ      string
	Lock     string
	Buzzer   string
	Button   string
	Debounce time.Duration
	// ReadTimeout bounds a single reader poll.
	ReadTimeout time.Duration
}

// Board owns every opened peripheral.
type Board struct {
	port   spi.PortCloser
	reader *mfrc522.Dev
	lock   gpio.PinIO
	buzzer gpio.PinIO
	button gpio.PinIO

	readTimeout time.Duration
	debounce    time.Duration
	clock       clock.Clock

	mu        sync.Mutex
	lastLevel gpio.Level
	lastPress time.Time
}

// Open initializes the host drivers and claims every pin in p.
func Open(p Pins, c clock.Clock) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "can't init host drivers")
	}

	port, err := spireg.Open(p.SPIPort)
	if err != nil {
		return nil, errors.Wrapf(err, "can't open spi port %q", p.SPIPort)
	}
	rst, err := pin(p.Reset)
	if err != nil {
		port.Close()
		return nil, err
	}
	irq, err := pin(p.IRQ)
	if err != nil {
		port.Close()
		return nil, err
	}
	dev, err := mfrc522.NewSPI(port, rst, irq)
	if err != nil {
		port.Close()
		return nil, errors.Wrap(err, "can't init mfrc522")
	}

	b := &Board{
		port:        port,
		reader:      dev,
		readTimeout: p.ReadTimeout,
		debounce:    p.Debounce,
		clock:       c,
		lastLevel:   gpio.High,
	}
	if b.lock, err = pin(p.Lock); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.lock.Out(gpio.Low); err != nil {
		b.Close()
		return nil, errors.Wrap(err, "can't drive lock pin")
	}
	if b.buzzer, err = pin(p.Buzzer); err != nil {
		b.Close()
		return nil, err
	}
	if err := b.buzzer.Out(gpio.Low); err != nil {
		b.Close()
		return nil, errors.Wrap(err, "can't drive buzzer pin")
	}
	if p.Button != "" {
		if b.button, err = pin(p.Button); err != nil {
			b.Close()
			return nil, err
		}
		if err := b.button.In(gpio.PullUp, gpio.NoEdge); err != nil {
			b.Close()
			return nil, errors.Wrap(err, "can't configure button pin")
		}
	}
	return b, nil
}

func pin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.Errorf("unknown gpio %q", name)
	}
	return p, nil
}

// ReadSerial polls the reader once. A timeout or a failed anticollision
// round both mean no usable card, so they are reported as no tag.
func (b *Board) ReadSerial(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	uid, err := b.reader.ReadUID(b.readTimeout)
	if err != nil {
		return nil, nil
	}
	if err := b.reader.Halt(); err != nil {
		log.Printf("mfrc522 halt: %v", err)
	}
	return uid, nil
}

func (b *Board) SetEnergized(on bool) error {
	lvl := gpio.Low
	if on {
		lvl = gpio.High
	}
	return errors.Wrap(b.lock.Out(lvl), "can't drive lock pin")
}

func (b *Board) On(hz int) error {
	return errors.Wrap(b.buzzer.PWM(gpio.DutyHalf, physic.Frequency(hz)*physic.Hertz), "can't start tone")
}

func (b *Board) Off() error {
	return errors.Wrap(b.buzzer.Out(gpio.Low), "can't stop tone")
}

// Pressed reports a falling edge on the button that is at least Debounce
// after the previous accepted one.
func (b *Board) Pressed() bool {
	if b.button == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	lvl := b.button.Read()
	prev := b.lastLevel
	b.lastLevel = lvl
	if !(prev == gpio.High && lvl == gpio.Low) {
		return false
	}
	now := b.clock.Now()
	if !b.lastPress.IsZero() && now.Sub(b.lastPress) < b.debounce {
		return false
	}
	b.lastPress = now
	return true
}

func (b *Board) Close() error {
	if b.lock != nil {
		b.lock.Out(gpio.Low)
	}
	if b.buzzer != nil {
		b.buzzer.Out(gpio.Low)
	}
	if b.reader != nil {
		b.reader.Halt()
	}
	return errors.Wrap(b.port.Close(), "can't close spi port")
}
