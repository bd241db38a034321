// Package backend opens the configured record store.
package backend

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/collapsinghierarchy/rfidgate/config"
	"github.com/collapsinghierarchy/rfidgate/store"
	"github.com/collapsinghierarchy/rfidgate/store/file"
	"github.com/collapsinghierarchy/rfidgate/store/index"
	"github.com/collapsinghierarchy/rfidgate/store/postgres"
	"github.com/collapsinghierarchy/rfidgate/store/sqlite"
)

// Open mounts the backend named in cfg, optionally fronted by the in-memory
// index. The returned func releases everything Open acquired. Any failure
// wraps store.ErrMountFailed.
func Open(ctx context.Context, cfg config.StoreConfig) (store.Store, func(), error) {
	var (
		st      store.Store
		closers []func()
		path    string
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Backend {
	case config.BackendFile:
		fs, err := file.Open(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		st, path = fs, fs.Path()
	case config.BackendSQLite:
		ss, err := sqlite.Open(ctx, cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		st = ss
		closers = append(closers, func() { ss.Close() })
	case config.BackendPostgres:
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		pool, err := postgres.Open(cctx, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pool.Close)
		ps := postgres.NewStore(pool)
		if err := ps.Migrate(cctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		st = ps
	default:
		return nil, nil, fmt.Errorf("%w: unknown backend %q", store.ErrMountFailed, cfg.Backend)
	}

	if !cfg.Index {
		return st, closeAll, nil
	}
	idx := index.New(st)
	if path != "" {
		w, err := index.Watch(ctx, idx, path)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("%w: watch %s: %v", store.ErrMountFailed, path, err)
		}
		closers = append(closers, func() { w.Close() })
	}
	log.Printf("record index enabled")
	return idx, closeAll, nil
}
