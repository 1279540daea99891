package workers

import (
	"sync"
)

// RequestRing holds the ids of the requests a worker has accepted and
// not yet acknowledged. Released slots are reused first. When every
// slot is taken, the ring grows; a held id is never dropped.
type RequestRing struct {
	mutex sync.Mutex
	ids   []string
}

// NewRequestRing returns a ring with room for capacity ids.
func NewRequestRing(capacity int) *RequestRing {
	if capacity < 1 {
		capacity = 1
	}
	return &RequestRing{ids: make([]string, capacity)}
}

// Claim records id. It returns false if id is empty or already held.
func (r *RequestRing) Claim(id string) bool {
	if id == "" {
		return false
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.indexOf(id) >= 0 {
		return false
	}
	if slot := r.indexOf(""); slot >= 0 {
		r.ids[slot] = id
	} else {
		r.ids = append(r.ids, id)
	}
	return true
}

// Release frees the slot holding id.
func (r *RequestRing) Release(id string) {
	if id == "" {
		return
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if i := r.indexOf(id); i >= 0 {
		r.ids[i] = ""
	}
}

// Holds returns true if id has been claimed and not released.
func (r *RequestRing) Holds(id string) bool {
	if id == "" {
		return false
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.indexOf(id) >= 0
}

// IDs returns the held ids in slot order.
func (r *RequestRing) IDs() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	ids := make([]string, 0, len(r.ids))
	for _, id := range r.ids {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r *RequestRing) indexOf(id string) int {
	for i, held := range r.ids {
		if held == id {
			return i
		}
	}
	return -1
}
