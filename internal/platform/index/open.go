package index

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/vadssync/vadssync/internal/platform/db"
)

// Options tunes the backends that hold connection pools.
type Options struct {
	MaxConns int32
	MinConns int32
}

// Open picks a backend from the URL scheme:
//
//	http, https          Elasticsearch
//	postgres, postgresql PostgreSQL (JSONB tables)
//	mem                  in-process memory
func Open(ctx context.Context, rawURL string, opts Options, logger zerolog.Logger) (Store, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse index url: %w", err)
	}

	logger = logger.With().Str("component", "index").Str("backend", u.Scheme).Logger()

	switch u.Scheme {
	case "http", "https":
		return NewElasticStore(rawURL, nil, logger)
	case "postgres", "postgresql":
		pool, err := db.NewPool(ctx, rawURL, opts.MaxConns, opts.MinConns)
		if err != nil {
			return nil, err
		}
		return NewPostgresStore(pool, logger), nil
	case "mem":
		store := NewMemoryStore()
		store.SetLogger(logger)
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}
