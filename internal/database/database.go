// Package database selects and opens the session store backend.
package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/kozaktomas/face-sculptor/internal/config"
	"github.com/kozaktomas/face-sculptor/internal/session"
)

// SchemeMemory selects the in-process backend; an empty URL does too.
const SchemeMemory = "memory"

// Scheme returns the lower-cased scheme of a DATABASE_URL ("" when none).
func Scheme(url string) string {
	scheme, _, ok := strings.Cut(url, ":")
	if !ok {
		return ""
	}
	return strings.ToLower(scheme)
}

// Open returns the session repository selected by cfg.URL.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (session.Repository, error) {
	scheme := Scheme(cfg.URL)
	if cfg.URL == "" || scheme == SchemeMemory {
		return session.NewMemoryRepository(), nil
	}
	if scheme == "" {
		return nil, fmt.Errorf("DATABASE_URL %q has no scheme (known: %s)", cfg.URL, strings.Join(Schemes(), ", "))
	}

	open, err := opener(scheme)
	if err != nil {
		return nil, fmt.Errorf("%w (known: %s)", err, strings.Join(Schemes(), ", "))
	}
	repo, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s session store: %w", scheme, err)
	}
	return repo, nil
}
