// Package snapshot persists each channel's event set as timestamped JSON
// files, one directory per channel. The newest file by name is the channel's
// current state.
package snapshot

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"nasfaqv2/brokerbot/ytmonitor/internal/events"
)

// Sorts lexicographically in capture order.
const fileLayout = "20060102T150405.000000000Z"

const ext = ".json"

type Store struct {
	Root string
	Now  func() time.Time
}

func New(root string) *Store {
	return &Store{Root: root, Now: time.Now}
}

// Dir is the directory owned by the channel with the given key. Distinct
// keys always map to distinct directories.
func (s *Store) Dir(key string) string {
	return filepath.Join(s.Root, dirName(key))
}

// dirName path-escapes key so it is a single, reversible path segment.
// PathEscape output never holds a bare "%" or "%2E", which keeps the special
// cases below unique.
func dirName(key string) string {
	switch key {
	case "":
		return "%"
	case ".":
		return "%2E"
	case "..":
		return "%2E%2E"
	}
	return strings.ReplaceAll(url.PathEscape(key), ":", "%3A")
}

// LoadLatest returns the events in the newest snapshot for key. A missing
// directory, an empty one, or an unreadable file all yield an empty list.
func (s *Store) LoadLatest(key string) []events.Event {
	names, err := s.list(key)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("snapshot: key=%s list error: %v", key, err)
		}
		return []events.Event{}
	}
	if len(names) == 0 {
		return []events.Event{}
	}
	path := filepath.Join(s.Dir(key), names[len(names)-1])
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("snapshot: key=%s read %s: %v", key, path, err)
		return []events.Event{}
	}
	var evs []events.Event
	if err := json.Unmarshal(data, &evs); err != nil {
		log.Printf("snapshot: key=%s decode %s: %v", key, path, err)
		return []events.Event{}
	}
	if evs == nil {
		evs = []events.Event{}
	}
	return evs
}

// Save writes evs as a new snapshot named after the current time. Two saves
// within the same nanosecond overwrite each other.
func (s *Store) Save(key string, evs []events.Event) error {
	if evs == nil {
		evs = []events.Event{}
	}
	name := s.Now().UTC().Format(fileLayout) + ext
	path := filepath.Join(s.Dir(key), name)

	w, err := newAtomicWriter(path)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", key, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(evs); err != nil {
		w.abort()
		return fmt.Errorf("snapshot %s: encode: %w", key, err)
	}
	if err := w.commit(); err != nil {
		return fmt.Errorf("snapshot %s: %w", key, err)
	}
	return nil
}

// Trim keeps only the newest keep snapshots for key.
func (s *Store) Trim(key string, keep int) error {
	if keep < 1 {
		keep = 1
	}
	names, err := s.list(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("trim %s: %w", key, err)
	}
	if len(names) <= keep {
		return nil
	}
	var firstErr error
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(s.Dir(key), name)); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("trim %s: %w", key, err)
		}
	}
	return firstErr
}

// ResetIfStale deletes every snapshot under Root when none of them was
// captured on now's UTC date. It returns the number of files removed.
func (s *Store) ResetIfStale(now time.Time) (int, error) {
	dirs, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reset: %w", err)
	}
	today := now.UTC().Format("20060102")

	var all []string
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		names, err := listDir(filepath.Join(s.Root, d.Name()))
		if err != nil {
			continue
		}
		for _, name := range names {
			if strings.HasPrefix(name, today) {
				return 0, nil
			}
			all = append(all, filepath.Join(s.Root, d.Name(), name))
		}
	}

	removed := 0
	for _, path := range all {
		if err := os.Remove(path); err != nil {
			log.Printf("snapshot: reset could not remove %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed, nil
}

// list returns the snapshot file names for key in ascending order.
func (s *Store) list(key string) ([]string, error) {
	return listDir(s.Dir(key))
}

func listDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
