package registry

import (
	"os"
	"strings"
)

// CredentialStore resolves credential keys to secret values.
//
// Values are secrets: callers must never log them or echo them into
// results. The store is read-only during a dispatch run.
type CredentialStore interface {
	Lookup(key string) (string, bool)
}

// NewCredentialStore builds the standard store: static entries from config
// layered over optional process-environment fallback.
func NewCredentialStore(static map[string]string, env bool) CredentialStore {
	cp := make(map[string]string, len(static))
	for k, v := range static {
		k = strings.TrimSpace(k)
		if k == "" || strings.TrimSpace(v) == "" {
			continue
		}
		cp[k] = v
	}
	return &credStore{static: cp, env: env}
}

type credStore struct {
	static map[string]string
	env    bool
}

func (s *credStore) Lookup(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	if v, ok := s.static[key]; ok {
		return v, true
	}
	if s.env {
		if v := os.Getenv(key); strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}

// StaticCredentials is a map-only store for tests.
type StaticCredentials map[string]string

func (m StaticCredentials) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok && strings.TrimSpace(v) != ""
}
