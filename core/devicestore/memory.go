package devicestore

import (
	"sort"
	"sync"
	"time"

	"github.com/savelife/rescue/core/model"
)

// MemoryStore is the in-memory Store implementation. A single mutex serializes
// all writes, which gives each state transition the per-device atomicity the
// dispatch protocol requires.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]model.Device
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]model.Device{}, now: time.Now}
}

func (s *MemoryStore) Get(token string) (model.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.data[token]
	if !ok {
		return model.Device{}, ErrUnknownDevice
	}
	return d, nil
}

func (s *MemoryStore) Upsert(d model.Device) {
	s.mu.Lock()
	d.LastUpdated = s.now()
	s.data[d.Token] = d
	s.mu.Unlock()
}

// UpsertReport merges a position self-report under the same lock that guards
// the state transitions, so a commit or reset landing next to a report is
// never overwritten by a stale read.
func (s *MemoryStore) UpsertReport(token string, role model.Role, pos *model.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[token]
	if !ok {
		d = model.Device{Token: token, Role: role, State: model.StateAvailable}
	}
	if pos != nil {
		p := *pos
		d.Position = &p
	}
	d.LastUpdated = s.now()
	s.data[token] = d
}

func (s *MemoryStore) CompareAndSetState(token string, expected, next model.ResponderState) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[token]
	if !ok {
		return false, ErrUnknownDevice
	}
	if d.State != expected {
		return false, nil
	}
	d.State = next
	d.LastUpdated = s.now()
	s.data[token] = d
	return true, nil
}

func (s *MemoryStore) List() []model.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Device, 0, len(s.data))
	for _, d := range s.data {
		res = append(res, d)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Token < res[j].Token })
	return res
}

func (s *MemoryStore) ResetAllResponding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for tok, d := range s.data {
		if d.State != model.StateResponding {
			continue
		}
		d.State = model.StateAvailable
		d.LastUpdated = s.now()
		s.data[tok] = d
		count++
	}
	return count
}
