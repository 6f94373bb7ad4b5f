// Package registry records which fonts this tool activated and where the
// active copy lives. It is the only source of truth for "did we activate
// this font"; every mutation is flushed to the backing store before it
// returns.
package registry

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/logandonley/font-activator/internal/store"
)

// Key is the store key holding the ordered record list.
const Key = "activeFonts"

// ActivationRecord maps a font the user selected to the copy placed in a
// font directory.
type ActivationRecord struct {
	OriginalPath string `json:"original"`
	ActivePath   string `json:"active"`
}

// Matches reports whether path names either side of the record.
func (r ActivationRecord) Matches(path string) bool {
	return r.OriginalPath == path || r.ActivePath == path
}

// Registry is the persisted, ordered set of activation records. OriginalPath
// is unique across records.
type Registry struct {
	mu      sync.RWMutex
	store   store.Store
	records []ActivationRecord
}

// Open loads the registry from st.
func Open(st store.Store) (*Registry, error) {
	r := &Registry{store: st}
	records, err := r.Load()
	if err != nil {
		return nil, err
	}
	r.records = records
	return r, nil
}

// Load reads the persisted records. A store that never saw the key yields
// an empty list.
func (r *Registry) Load() ([]ActivationRecord, error) {
	raw, ok, err := r.store.Get(Key)
	if err != nil {
		return nil, fmt.Errorf("loading activation registry: %w", err)
	}
	if !ok || len(raw) == 0 {
		return []ActivationRecord{}, nil
	}

	var records []ActivationRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decoding activation registry: %w", err)
	}
	return dedupe(records), nil
}

// Records returns a copy of the current records in order.
func (r *Registry) Records() []ActivationRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ActivationRecord(nil), r.records...)
}

// Find returns the first record whose original or active path equals path.
func (r *Registry) Find(path string) (ActivationRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if rec.Matches(path) {
			return rec, true
		}
	}
	return ActivationRecord{}, false
}

// MatchName reports whether any active copy has the given file name.
func (r *Registry) MatchName(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rec := range r.records {
		if filepath.Base(rec.ActivePath) == name {
			return true
		}
	}
	return false
}

// Upsert stores rec, replacing the record with the same OriginalPath in
// place or appending it.
func (r *Registry) Upsert(rec ActivationRecord) error {
	if strings.TrimSpace(rec.OriginalPath) == "" || strings.TrimSpace(rec.ActivePath) == "" {
		return fmt.Errorf("upserting activation record: original and active paths are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := append([]ActivationRecord(nil), r.records...)
	replaced := false
	for i, existing := range next {
		if existing.OriginalPath == rec.OriginalPath {
			next[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		next = append(next, rec)
	}

	if err := r.flush(next); err != nil {
		return err
	}
	r.records = next
	return nil
}

// Remove deletes every record whose original or active path equals path.
// It reports whether anything was removed; nothing is written otherwise.
func (r *Registry) Remove(path string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]ActivationRecord, 0, len(r.records))
	for _, rec := range r.records {
		if !rec.Matches(path) {
			next = append(next, rec)
		}
	}
	if len(next) == len(r.records) {
		return false, nil
	}

	if err := r.flush(next); err != nil {
		return false, err
	}
	r.records = next
	return true, nil
}

func (r *Registry) flush(records []ActivationRecord) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding activation registry: %w", err)
	}
	if err := r.store.Set(Key, raw); err != nil {
		return fmt.Errorf("flushing activation registry: %w", err)
	}
	return nil
}

// dedupe keeps the last record per OriginalPath at the position of the first,
// repairing state written by older versions that appended duplicates.
func dedupe(records []ActivationRecord) []ActivationRecord {
	index := make(map[string]int, len(records))
	out := make([]ActivationRecord, 0, len(records))
	for _, rec := range records {
		if i, ok := index[rec.OriginalPath]; ok {
			out[i] = rec
			continue
		}
		index[rec.OriginalPath] = len(out)
		out = append(out, rec)
	}
	return out
}
