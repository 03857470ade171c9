// Package access decides whether a user may mutate a community, an event
// or a page block. Every check reads the current owner and role from the
// data store; nothing is cached between calls.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/community"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/content"
	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/profile"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("permission denied")
	ErrNotFound        = errors.New("entity not found")
)

// Checker resolves ownership and admin rights.
type Checker struct {
	profiles    profile.Repository
	communities community.CommunityRepository
	events      community.EventRepository
}

// NewChecker creates a Checker over the given repositories.
func NewChecker(profiles profile.Repository, communities community.CommunityRepository, events community.EventRepository) *Checker {
	return &Checker{profiles: profiles, communities: communities, events: events}
}

// IsAdmin reports whether userID has the admin role. A user without a
// profile row is not an admin.
func (c *Checker) IsAdmin(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	p, err := c.profiles.GetByID(ctx, userID)
	if errors.Is(err, profile.ErrProfileNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load profile: %w", err)
	}
	return p.IsAdmin(), nil
}

// RequireAdmin returns nil only for admins.
func (c *Checker) RequireAdmin(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	admin, err := c.IsAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrForbidden
	}
	return nil
}

// CanEditCommunity returns the community when userID owns it or is an admin.
// Soft-deleted communities are returned too so they can be restored.
func (c *Checker) CanEditCommunity(ctx context.Context, userID, communityID string) (*community.Community, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	comm, err := c.communities.GetByID(ctx, communityID)
	if errors.Is(err, community.ErrCommunityNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load community: %w", err)
	}
	if err := c.ownerOrAdmin(ctx, userID, comm.OwnerID); err != nil {
		return nil, err
	}
	return comm, nil
}

// CanEditEvent applies the community rule to the event's parent community.
func (c *Checker) CanEditEvent(ctx context.Context, userID, eventID string) (*community.Event, *community.Community, error) {
	if userID == "" {
		return nil, nil, ErrUnauthenticated
	}
	ev, err := c.events.GetByID(ctx, eventID)
	if errors.Is(err, community.ErrEventNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load event: %w", err)
	}
	comm, err := c.CanEditCommunity(ctx, userID, ev.CommunityID)
	if err != nil {
		return nil, nil, err
	}
	return ev, comm, nil
}

// CanEditOwner dispatches on the owner of a block.
func (c *Checker) CanEditOwner(ctx context.Context, userID string, owner content.Owner) error {
	switch owner.Type {
	case content.OwnerCommunity:
		_, err := c.CanEditCommunity(ctx, userID, owner.ID)
		return err
	case content.OwnerEvent:
		_, _, err := c.CanEditEvent(ctx, userID, owner.ID)
		return err
	default:
		return ErrNotFound
	}
}

func (c *Checker) ownerOrAdmin(ctx context.Context, userID, ownerID string) error {
	if userID == ownerID {
		return nil
	}
	admin, err := c.IsAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !admin {
		return ErrForbidden
	}
	return nil
}
