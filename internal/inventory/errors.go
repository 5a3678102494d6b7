package inventory

import "errors"

// Sentinel errors for the placement, stacking and currency rules. Callers
// branch with errors.Is; the transport layer maps them to wire codes.
var (
	ErrOutOfBounds       = errors.New("placement out of bounds")
	ErrCollision         = errors.New("placement collides with another item")
	ErrNoSpace           = errors.New("no free slot in grid")
	ErrStackFull         = errors.New("target stack is full")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrItemNotFound      = errors.New("item not found")
)
