// Package sim stands in for the board when running on a workstation.
// Each line read from the input is one card presentation ("AA:BB:CC:DD"),
// and a line holding only "!" is a mode-button press.
package sim

import (
	"bufio"
	"context"
	"encoding/hex"
	"io"
	"log"
	"strings"
	"sync"
)

type Board struct {
	scans chan []byte

	mu      sync.Mutex
	presses int
	locked  bool
}

// New starts reading presentations from r until it hits EOF.
func New(r io.Reader) *Board {
	b := &Board{scans: make(chan []byte, 16), locked: true}
	go b.feed(r)
	return b
}

func (b *Board) feed(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
		case line == "!":
			b.mu.Lock()
			b.presses++
			b.mu.Unlock()
		default:
			raw, err := decode(line)
			if err != nil {
				log.Printf("sim: ignoring %q: %v", line, err)
				continue
			}
			b.scans <- raw
		}
	}
}

func decode(s string) ([]byte, error) {
	return hex.DecodeString(strings.ReplaceAll(s, ":", ""))
}

func (b *Board) ReadSerial(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case raw := <-b.scans:
		return raw, nil
	default:
		return nil, nil
	}
}

func (b *Board) SetEnergized(on bool) error {
	b.mu.Lock()
	b.locked = !on
	b.mu.Unlock()
	if on {
		log.Printf("sim: actuator energized (door unlocked)")
	} else {
		log.Printf("sim: actuator released (door locked)")
	}
	return nil
}

func (b *Board) Locked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

func (b *Board) On(hz int) error {
	log.Printf("sim: tone %d Hz", hz)
	return nil
}

func (b *Board) Off() error { return nil }

func (b *Board) Pressed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.presses == 0 {
		return false
	}
	b.presses--
	return true
}
