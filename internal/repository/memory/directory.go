package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/Rrens/flight-support/internal/domain"
)

// Directory is an in-process domain.IdentityResolver
type Directory struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]domain.Identity
}

// NewDirectory creates an empty directory
func NewDirectory() *Directory {
	return &Directory{users: make(map[int64]domain.Identity)}
}

// Add registers a user and returns its id
func (d *Directory) Add(name string, userType domain.UserType) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	d.users[d.nextID] = domain.Identity{ID: d.nextID, Name: name, Roles: domain.RolesFor(userType)}
	return d.nextID
}

// Put registers a user under a fixed id
func (d *Directory) Put(id int64, name string, userType domain.UserType) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id > d.nextID {
		d.nextID = id
	}
	d.users[id] = domain.Identity{ID: id, Name: name, Roles: domain.RolesFor(userType)}
}

func (d *Directory) Resolve(ctx context.Context, userID int64) (*domain.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ident, ok := d.users[userID]
	if !ok {
		return nil, &domain.Error{Kind: domain.KindNotFound, Op: "resolve", Err: fmt.Errorf("user %d not found", userID)}
	}
	return &ident, nil
}
