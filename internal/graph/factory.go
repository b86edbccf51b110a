package graph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/solatis/searchtrace/internal/core/db"
	"github.com/solatis/searchtrace/internal/types"
)

// Options carries everything any backend constructor may need.
type Options struct {
	// Location is the directory a persistent backend stores its files in.
	Location string

	// DBURL overrides the SQLite file under Location for persistent-graph.
	DBURL string

	// RemoteAddr and APIKey locate and authenticate the graph service.
	RemoteAddr string
	APIKey     string
	Timeout    time.Duration

	Logger *zap.Logger
}

// Constructor builds a backend from Options.
type Constructor func(ctx context.Context, opts Options) (Graph, error)

var constructors = map[string]Constructor{
	BackendMemory: func(ctx context.Context, opts Options) (Graph, error) {
		return NewMemory(), nil
	},
	BackendPersistent: func(ctx context.Context, opts Options) (Graph, error) {
		dbURL := opts.DBURL
		if dbURL == "" {
			if opts.Location == "" {
				return nil, fmt.Errorf("%s backend requires a location or database URL", BackendPersistent)
			}
			if err := ensureDir(opts.Location); err != nil {
				return nil, err
			}
			dbURL = db.SQLiteURL(filepath.Join(opts.Location, "trace.db"))
		}
		return OpenSQL(ctx, dbURL, opts.Logger)
	},
	BackendKV: func(ctx context.Context, opts Options) (Graph, error) {
		return OpenKV(ctx, opts.Location, opts.Logger)
	},
	BackendRemote: func(ctx context.Context, opts Options) (Graph, error) {
		return DialRemote(ctx, opts.RemoteAddr, opts.APIKey, opts.Timeout, opts.Logger)
	},
}

// Backends lists the registered backend names in sorted order.
func Backends() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open constructs the backend registered under name. Every call returns a
// new instance; callers own it and must Close it.
func Open(ctx context.Context, name string, opts Options) (Graph, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", types.ErrUnknownBackend, name, Backends())
	}
	g, err := ctor(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", name, err)
	}
	return g, nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create data directory %s: %w", dir, err)
	}
	return nil
}
