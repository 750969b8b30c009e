package types

import "github.com/google/uuid"

// Actor identifies who is performing a core operation and on behalf of which
// restaurant. It is threaded explicitly into every ledger call instead of
// being read from ambient request state.
type Actor struct {
	UserID       uuid.UUID
	RestaurantID uuid.UUID
	Role         string
}

// Valid reports whether the actor carries the minimum identity the core needs.
func (a Actor) Valid() bool {
	return a.UserID != uuid.Nil && a.RestaurantID != uuid.Nil
}
