package store

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// CreateID returns a random UUID, or a time-and-random composite if the
// system random source fails. Uniqueness is best effort.
func CreateID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("id_%d_%x", time.Now().UnixMilli(), rand.Uint64())
	}
	return id.String()
}
