package service

import (
	"sync"

	"github.com/google/uuid"
)

const lockStripes = 64

// Locks serializes connection-record writes per connection id without
// holding one global mutex across unrelated connections.
type Locks struct {
	stripes [lockStripes]sync.Mutex
}

// NewLocks creates the shared lock set. One instance guards every writer
// of the connection store.
func NewLocks() *Locks {
	return &Locks{}
}

func (s *Locks) lock(id uuid.UUID) *sync.Mutex {
	// First byte of the UUID is uniformly distributed.
	m := &s.stripes[int(id[0])%lockStripes]
	m.Lock()
	return m
}
