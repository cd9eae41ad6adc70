// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"hassctl/internal/issue"
)

const (
	// backupPrefix and backupExt form backup filenames:
	// entity_registry.<timestamp>.json
	backupPrefix = "entity_registry."
	backupExt    = ".json"

	// TimestampLayout is the backup timestamp format (sorts lexically).
	TimestampLayout = "20060102_150405"
)

type (
	// Store manages timestamped registry backups in a local directory.
	Store struct {
		// Dir is the backup directory, created on first write.
		Dir string

		// Now returns the current time; overridable in tests.
		Now func() time.Time
	}

	// Backup describes one stored backup file.
	Backup struct {
		Timestamp string
		Path      string
		Entities  int
		Size      int64
		// Valid is false when the file no longer parses as a registry.
		Valid bool
	}
)

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{Dir: dir, Now: time.Now}
}

// Create validates data as a registry document and commits it as a new
// timestamped backup. Invalid payloads are rejected and nothing is written.
func (s *Store) Create(data []byte) (*Backup, error) {
	reg, err := Parse(data)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("create backup").
			WithSuggestion("The fetched file is not a valid entity registry; check the remote registry path").
			Wrap(err).
			BuildError()
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	ts := s.Now().Format(TimestampLayout)
	path := filepath.Join(s.Dir, backupPrefix+ts+backupExt)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}

	return &Backup{
		Timestamp: ts,
		Path:      path,
		Entities:  len(reg.Entities),
		Size:      int64(len(data)),
		Valid:     true,
	}, nil
}

// List returns all backups, newest first. Files that no longer parse are
// included with Valid=false so the user can see (and clean) them.
func (s *Store) List() ([]Backup, error) {
	entries, err := os.ReadDir(s.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []Backup
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupExt) {
			continue
		}
		ts := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupExt)
		path := filepath.Join(s.Dir, name)

		b := Backup{Timestamp: ts, Path: path}
		if info, err := entry.Info(); err == nil {
			b.Size = info.Size()
		}
		if reg, err := LoadFile(path); err == nil {
			b.Entities = len(reg.Entities)
			b.Valid = true
		}
		backups = append(backups, b)
	}

	// Timestamps sort lexically in chronological order.
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp > backups[j].Timestamp
	})
	return backups, nil
}

// Find returns the backup with the given timestamp.
func (s *Store) Find(timestamp string) (*Backup, error) {
	path := filepath.Join(s.Dir, backupPrefix+timestamp+backupExt)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, issue.NewErrorContext().
			WithOperation("find backup").
			WithResource(timestamp).
			WithSuggestion("Run 'hassctl backup list' to see available backups").
			Wrap(fmt.Errorf("backup not found")).
			BuildError()
	}
	if err != nil {
		return nil, err
	}

	b := &Backup{Timestamp: timestamp, Path: path, Size: info.Size()}
	reg, err := LoadFile(path)
	if err != nil {
		return b, issue.NewErrorContext().
			WithOperation("verify backup").
			WithResource(filepath.Base(path)).
			WithSuggestion("The backup file is corrupted; pick another from 'hassctl backup list'").
			Wrap(err).
			BuildError()
	}
	b.Entities = len(reg.Entities)
	b.Valid = true
	return b, nil
}

// Clean removes all but the keep most recent backups and returns the
// removed entries. When keep or fewer backups exist, nothing is removed.
func (s *Store) Clean(keep int) ([]Backup, error) {
	backups, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(backups) <= keep {
		return nil, nil
	}

	var removed []Backup
	for _, b := range backups[keep:] {
		if err := os.Remove(b.Path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", filepath.Base(b.Path), err)
		}
		removed = append(removed, b)
	}
	return removed, nil
}
