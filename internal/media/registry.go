package media

import (
	"sync"
)

// Registry is the in-memory capture registry. Records are unique by URL and
// by ID; the first observation of a URL wins. It lives as long as the process
// that owns it and is never persisted.
type Registry struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*Record
	byURL map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:  make(map[string]*Record),
		byURL: make(map[string]string),
	}
}

// Insert adds rec unless its URL or ID is already present. It returns the
// stored record and whether rec was inserted.
func (r *Registry) Insert(rec Record) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byURL[rec.URL]; ok {
		return *r.byID[id], false
	}
	if existing, ok := r.byID[rec.ID]; ok {
		return *existing, false
	}

	stored := rec
	r.byID[rec.ID] = &stored
	r.byURL[rec.URL] = rec.ID
	r.order = append(r.order, rec.ID)
	return stored, true
}

// List returns a copy of all records in insertion order.
func (r *Registry) List() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out
}

// Get returns the record with the given id.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byID[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Remove deletes the record with the given id. Missing ids are a no-op.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)
	delete(r.byURL, rec.URL)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Clear removes every record and returns how many were dropped.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.order)
	r.order = nil
	r.byID = make(map[string]*Record)
	r.byURL = make(map[string]string)
	return n
}

// SetTabTitle backfills the tab title of a record. It is the only mutation a
// record sees after insertion.
func (r *Registry) SetTabTitle(id, title string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byID[id]
	if !ok {
		return false
	}
	rec.TabTitle = title
	return true
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
