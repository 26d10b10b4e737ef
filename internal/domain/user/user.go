package user

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = errors.New("user not found")

// User holds the identity fields used for notification and loyalty targeting.
type User struct {
	ID      string
	Name    string
	Email   string
	Phone   string
	Address string
}

// Store provides read access to users.
type Store interface {
	Get(ctx context.Context, id string) (*User, error)
}
