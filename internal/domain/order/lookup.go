package order

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

// Get returns an order visible to callerID. Orders of other users and guest
// orders are reported as not found.
func (s *Service) Get(ctx context.Context, orderID, callerID string) (*Order, error) {
	o, err := s.loadByID(ctx, orderID)()
	if err != nil {
		return nil, err
	}
	if callerID == "" || o.UserID != callerID {
		return nil, ErrNotFound
	}
	return o, nil
}

// ListForUser returns the orders of userID, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "list orders of %s", userID)
	}
	return orders, nil
}

// LookupGuest finds a guest order by contact email and identifier. The
// identifier is either the full order id or its short code, matched without
// regard to case. The email must match exactly.
func (s *Service) LookupGuest(ctx context.Context, email, identifier string) (*Order, error) {
	email = strings.TrimSpace(email)
	identifier = strings.TrimSpace(identifier)
	if email == "" || identifier == "" {
		return nil, ErrNotFound
	}

	if len(identifier) > ShortCodeLen {
		o, err := s.loadByID(ctx, identifier)()
		if err != nil {
			return nil, err
		}
		if !o.IsGuest() || o.Contact == nil || o.Contact.Email != email {
			return nil, ErrNotFound
		}
		return o, nil
	}
	if len(identifier) != ShortCodeLen {
		return nil, ErrNotFound
	}

	orders, err := s.orders.ListByEmail(ctx, email)
	if err != nil {
		return nil, errors.Wrap(err, "list guest orders")
	}
	code := strings.ToUpper(identifier)
	for i := range orders {
		o := &orders[i]
		if o.Contact == nil || o.Contact.Email != email {
			continue
		}
		if o.ShortCode() == code {
			return o, nil
		}
	}
	return nil, ErrNotFound
}
