// uuid simple generator that allows mocking
package uuid

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator is an interface for generating UUIDs
type Generator interface {
	New() string
}

// GoogleUUIDGenerator implements the Generator interface using Google's UUID package
type GoogleUUIDGenerator struct{}

// New generates a new UUID string
func (g *GoogleUUIDGenerator) New() string {
	return uuid.New().String()
}

// NewGoogleUUIDGenerator creates a new GoogleUUIDGenerator
func NewGoogleUUIDGenerator() *GoogleUUIDGenerator {
	return &GoogleUUIDGenerator{}
}

// SequentialGenerator hands out "<prefix>-<n>" IDs. Replays and tests use it
// so window and ailment IDs are stable across runs.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int
}

// NewSequentialGenerator creates a generator starting at 1
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	return &SequentialGenerator{prefix: prefix, next: 1}
}

// New returns the next ID in the sequence
func (g *SequentialGenerator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := fmt.Sprintf("%s-%d", g.prefix, g.next)
	g.next++
	return id
}
