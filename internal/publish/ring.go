package publish

import "sync"

// Ring is a bounded buffer of the most recent violation notices.
type Ring struct {
	mu    sync.RWMutex
	buf   []ViolationNotice
	limit int
}

func NewRing(limit int) *Ring {
	if limit <= 0 {
		limit = 1000
	}
	return &Ring{limit: limit}
}

func (r *Ring) Add(notice ViolationNotice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) < r.limit {
		r.buf = append(r.buf, notice)
		return
	}
	copy(r.buf, r.buf[1:])
	r.buf[len(r.buf)-1] = notice
}

func (r *Ring) List(limit int) []ViolationNotice {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if limit <= 0 || limit > len(r.buf) {
		limit = len(r.buf)
	}
	out := make([]ViolationNotice, 0, limit)
	for i := len(r.buf) - limit; i < len(r.buf); i++ {
		out = append(out, r.buf[i])
	}
	return out
}

func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = nil
}
