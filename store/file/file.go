// Package file is the line-oriented allow-list store kept in uids.txt.
//
// Records are appended one per line and never rewritten. Every Lookup is a
// linear scan from the top of the file, so the first record for a UID wins.
package file

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/collapsinghierarchy/rfidgate/model"
	"github.com/collapsinghierarchy/rfidgate/store"
)

// Store is a store.Store backed by a single text file.
type Store struct {
	path string
	mu   sync.Mutex // serializes appends against scans from the web path
}

// Open mounts the store at path, creating the directory and an empty file
// on first use.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrMountFailed, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrMountFailed, err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrMountFailed, err)
	}
	return &Store{path: path}, nil
}

var _ store.Store = (*Store)(nil)

func (s *Store) Path() string { return s.path }

func (s *Store) Lookup(ctx context.Context, uid string) (model.UidRecord, bool, error) {
	uid = model.NormalizeUID(uid)
	var (
		found model.UidRecord
		ok    bool
	)
	err := s.scan(ctx, func(rec *model.UidRecord) error {
		if rec.UID == uid {
			found, ok = *rec, true
			return errStop
		}
		return nil
	})
	if err != nil {
		return model.UidRecord{}, false, err
	}
	return found, ok, nil
}

func (s *Store) Insert(ctx context.Context, rec model.UidRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec = rec.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("open %s for append: %v", s.path, err)
		return fmt.Errorf("%w: %v", store.ErrWriteFailed, err)
	}
	if _, err := f.WriteString(FormatLine(rec) + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", store.ErrWriteFailed, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrWriteFailed, err)
	}
	log.Printf("added uid %s name=%q role=%s", rec.UID, rec.Name, rec.Role)
	return nil
}

func (s *Store) Stream(ctx context.Context, fn func(*model.UidRecord) error) error {
	return s.scan(ctx, fn)
}

var errStop = errors.New("stop scan")

// scan visits every well-formed record in file order. A missing file is an
// empty store. fn runs with the store locked and must not call back into it.
func (s *Store) scan(ctx context.Context, fn func(*model.UidRecord) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrReadFailed, err)
	}
	defer f.Close()

	// No line length limit: an oversized line is just another malformed
	// record and must not end the scan.
	br := bufio.NewReader(f)
	for {
		line, rerr := br.ReadString('\n')
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return fmt.Errorf("%w: %v", store.ErrReadFailed, rerr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if line != "" {
			if rec, err := ParseLine(line); err == nil {
				if err := fn(&rec); err != nil {
					if errors.Is(err, errStop) {
						return nil
					}
					return err
				}
			}
		}
		if rerr != nil {
			break
		}
	}
	return nil
}
