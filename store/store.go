package store

import (
	"context"
	"errors"

	"github.com/collapsinghierarchy/rfidgate/model"
)

var (
	ErrMountFailed = errors.New("store mount failed")
	ErrReadFailed  = errors.New("store read failed")
	ErrWriteFailed = errors.New("store write failed")
)

// Store is the append-only allow-list of tag records.
//
// Lookup returns the first record, in insertion order, whose normalized UID
// matches. An unknown tag is ok == false with a nil error. Insert never
// checks for duplicates; callers that care must Lookup first.
type Store interface {
	Lookup(ctx context.Context, uid string) (rec model.UidRecord, ok bool, err error)
	Insert(ctx context.Context, rec model.UidRecord) error
	Stream(ctx context.Context, fn func(*model.UidRecord) error) error
}
