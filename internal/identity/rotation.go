package identity

import (
	"github.com/rotisserie/eris"

	"github.com/example/prospector/internal/models"
)

// Rotation decides which identity performs the k-th unit of work.
type Rotation string

const (
	RoundRobin Rotation = "round_robin"
	Pinned     Rotation = "pinned"
)

// ParseRotation accepts "one_sender" as an alias for pinned.
func ParseRotation(s string) (Rotation, error) {
	switch s {
	case "", string(RoundRobin):
		return RoundRobin, nil
	case string(Pinned), "one_sender":
		return Pinned, nil
	}
	return "", eris.Errorf("identity: unknown rotation %q", s)
}

// Assign picks the identity for work item k. It is deterministic for a fixed
// pool order. pool must be non-empty.
func Assign(r Rotation, pool []models.Identity, k int) models.Identity {
	if r == Pinned || k < 0 {
		return pool[0]
	}
	return pool[k%len(pool)]
}
