// Package registry persists the set of remote hosts as a JSON file.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/melih/fleetctl/internal/core/domain"
	"github.com/samber/lo"
	"github.com/tidwall/jsonc"
)

// Store implements ports.HostRegistry on top of a single JSON file. Every
// mutation rewrites the whole file via temp file + rename. Mutations are
// serialized within the process only; separate processes writing the same
// file race and the last writer wins.
type Store struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewStore returns a store backed by path. The file need not exist yet.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// List reads the registry. A missing or unparsable file yields an empty set
// with Degraded describing why.
func (s *Store) List() domain.HostSet {
	entries, err := s.read()
	if err != nil {
		s.logger.Warn("host registry degraded", "path", s.path, "error", err)
		return domain.HostSet{Entries: []domain.HostEntry{}, Degraded: err}
	}
	return domain.HostSet{Entries: entries}
}

// Add registers a new host. The host address must not be registered yet.
func (s *Store) Add(entry domain.HostEntry) error {
	entry, err := entry.Normalize()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readForUpdate()
	if err != nil {
		return err
	}
	if lo.ContainsBy(entries, func(e domain.HostEntry) bool { return e.Host == entry.Host }) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateHost, entry.Host)
	}

	if err := s.write(append(entries, entry)); err != nil {
		return err
	}
	s.logger.Info("host added", "host", entry.Host, "name", entry.Name)
	return nil
}

// Update replaces the mutable fields of the entry registered under host.
func (s *Store) Update(host string, patch domain.HostPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readForUpdate()
	if err != nil {
		return err
	}
	current, idx, ok := lo.FindIndexOf(entries, func(e domain.HostEntry) bool { return e.Host == host })
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, host)
	}

	updated, err := patch.Apply(current).Normalize()
	if err != nil {
		return err
	}
	entries[idx] = updated

	if err := s.write(entries); err != nil {
		return err
	}
	s.logger.Info("host updated", "host", host)
	return nil
}

// Remove drops the entry registered under host. Removing an unknown host is
// not an error.
func (s *Store) Remove(host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.readForUpdate()
	if err != nil {
		return err
	}
	kept := lo.Reject(entries, func(e domain.HostEntry, _ int) bool { return e.Host == host })

	if err := s.write(kept); err != nil {
		return err
	}
	if len(kept) != len(entries) {
		s.logger.Info("host removed", "host", host)
	}
	return nil
}

// read loads the file permissively: comments and trailing commas are
// accepted.
func (s *Store) read() ([]domain.HostEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return decode(data)
}

// readForUpdate is read for the mutation path: a missing or empty file is
// an empty registry, anything unparsable is ErrRegistryCorrupt so that the
// previous contents are never overwritten.
func (s *Store) readForUpdate() ([]domain.HostEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.HostEntry{}, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.HostEntry{}, nil
	}
	entries, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRegistryCorrupt, err)
	}
	return entries, nil
}

func decode(data []byte) ([]domain.HostEntry, error) {
	var entries []domain.HostEntry
	if err := json.Unmarshal(jsonc.ToJSON(data), &entries); err != nil {
		return nil, fmt.Errorf("unmarshal registry: %w", err)
	}
	if entries == nil {
		entries = []domain.HostEntry{}
	}
	return entries, nil
}

// write replaces the registry file atomically.
func (s *Store) write(entries []domain.HostEntry) error {
	if entries == nil {
		entries = []domain.HostEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp registry: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp registry: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp registry: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, s.path); err != nil {
		cleanup()
		return fmt.Errorf("rename registry: %w", err)
	}
	return nil
}
