// Package index keeps an in-memory map of first-seen records in front of a
// store.Store. The wrapped store remains the source of truth: the map is
// rebuilt from it on the first Lookup after Invalidate.
package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/collapsinghierarchy/rfidgate/model"
	"github.com/collapsinghierarchy/rfidgate/store"
)

type Index struct {
	backing store.Store

	mu    sync.Mutex
	stale bool
	byUID map[string]model.UidRecord
}

var _ store.Store = (*Index)(nil)

func New(backing store.Store) *Index {
	return &Index{backing: backing, stale: true}
}

// Invalidate forces the next Lookup to rebuild from the backing store.
func (x *Index) Invalidate() {
	x.mu.Lock()
	x.stale = true
	x.mu.Unlock()
}

func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.byUID)
}

func (x *Index) Lookup(ctx context.Context, uid string) (model.UidRecord, bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.rebuildLocked(ctx); err != nil {
		return model.UidRecord{}, false, err
	}
	rec, ok := x.byUID[model.NormalizeUID(uid)]
	return rec, ok, nil
}

func (x *Index) Insert(ctx context.Context, rec model.UidRecord) error {
	if err := x.backing.Insert(ctx, rec); err != nil {
		return err
	}
	rec = rec.Normalized()

	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.stale {
		if _, dup := x.byUID[rec.UID]; !dup {
			x.byUID[rec.UID] = rec
		}
	}
	return nil
}

func (x *Index) Stream(ctx context.Context, fn func(*model.UidRecord) error) error {
	return x.backing.Stream(ctx, fn)
}

func (x *Index) rebuildLocked(ctx context.Context) error {
	if !x.stale {
		return nil
	}
	m := make(map[string]model.UidRecord)
	err := x.backing.Stream(ctx, func(r *model.UidRecord) error {
		if _, seen := m[r.UID]; !seen {
			m[r.UID] = *r
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: rebuild index: %v", store.ErrReadFailed, err)
	}
	x.byUID = m
	x.stale = false
	return nil
}
