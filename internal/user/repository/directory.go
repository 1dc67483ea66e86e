package repository

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"identity-core/internal/user/domain"
)

// Directory fans a lookup out across every role's store.
type Directory struct {
	stores map[domain.Role]Repository
}

// NewDirectory indexes stores by their role. Later stores for the same role win.
func NewDirectory(stores ...Repository) *Directory {
	d := &Directory{stores: make(map[domain.Role]Repository, len(stores))}
	for _, s := range stores {
		d.stores[s.Role()] = s
	}
	return d
}

// Store returns the repository for role.
func (d *Directory) Store(role domain.Role) (Repository, error) {
	s, ok := d.stores[role]
	if !ok {
		return nil, fmt.Errorf("no user store for role %q", role)
	}
	return s, nil
}

// Stores returns the repositories in domain.Roles order.
func (d *Directory) Stores() []Repository {
	out := make([]Repository, 0, len(d.stores))
	for _, role := range domain.Roles {
		if s, ok := d.stores[role]; ok {
			out = append(out, s)
		}
	}
	return out
}

// FindByEmail queries every store concurrently and returns the first match in
// role order, or nil when no store has the email. Any store error fails the lookup.
func (d *Directory) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	stores := d.Stores()
	found := make([]*domain.User, len(stores))
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range stores {
		g.Go(func() error {
			u, err := s.GetByEmail(gctx, email)
			if err != nil {
				return fmt.Errorf("%s store: %w", s.Role(), err)
			}
			found[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, u := range found {
		if u != nil {
			return u, nil
		}
	}
	return nil, nil
}
