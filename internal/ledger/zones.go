package ledger

import (
	"context"
	"errors"

	"github.com/Nixie-Tech-LLC/troupe/internal/db"
	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

// ZoneResolver provides the IANA zone a member's calendar is kept in.
type ZoneResolver interface {
	Zone(ctx context.Context, userID string) (string, error)
}

// StoreZones reads zones from user profiles, substituting Default for
// members that never set one.
type StoreZones struct {
	Store   db.Store
	Default string
}

func (z StoreZones) Zone(ctx context.Context, userID string) (string, error) {
	u, err := z.Store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", model.ErrOwnerNotFound
		}
		return "", err
	}
	if u.Timezone == "" {
		return z.Default, nil
	}
	return u.Timezone, nil
}
