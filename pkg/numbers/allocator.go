package numbers

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Allocator obtains a number when a request does not name one. In
// production this fronts the external numbering provider; the default
// implementation fabricates numbers for test and development use.
type Allocator interface {
	Allocate() (string, error)
}

// RandomAllocator fabricates E.164 numbers in the +1555 test range
type RandomAllocator struct{}

// NewRandomAllocator creates a RandomAllocator
func NewRandomAllocator() *RandomAllocator {
	return &RandomAllocator{}
}

// Allocate returns a fresh number. Collisions with an existing number are
// possible and surface as AlreadyOwnedError from AddNumber; callers retry.
func (a *RandomAllocator) Allocate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000000))
	if err != nil {
		return "", fmt.Errorf("failed to allocate number: %w", err)
	}
	return fmt.Sprintf("+1555%07d", n.Int64()), nil
}
