package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kozaktomas/face-sculptor/internal/config"
	"github.com/kozaktomas/face-sculptor/internal/session"
)

// Opener opens a session repository for a DATABASE_URL.
type Opener func(ctx context.Context, cfg *config.DatabaseConfig) (session.Repository, error)

var (
	openersMu sync.RWMutex
	openers   = map[string]Opener{}
)

// Register makes a backend available under one or more URL schemes.
// Backend packages call this from init to avoid import cycles.
func Register(open Opener, schemes ...string) {
	openersMu.Lock()
	defer openersMu.Unlock()
	for _, s := range schemes {
		openers[s] = open
	}
}

// Schemes lists registered URL schemes.
func Schemes() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()
	out := make([]string, 0, len(openers)+1)
	out = append(out, SchemeMemory)
	for s := range openers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func opener(scheme string) (Opener, error) {
	openersMu.RLock()
	defer openersMu.RUnlock()
	open, ok := openers[scheme]
	if !ok {
		return nil, fmt.Errorf("no session backend registered for scheme %q", scheme)
	}
	return open, nil
}
