package sponge

import (
	"github.com/df-mc/dragonfly/server/player"
	"github.com/google/uuid"
)

// Identifiable is implemented by everything with a persistent unique id.
// OWNER, NOTIFIER and CREATOR context values must implement it.
type Identifiable interface {
	UniqueID() uuid.UUID
}

// User is the persistent identity of a player, independent of whether the
// player is online.
type User struct {
	id   uuid.UUID
	name string
	xuid string
}

// NewUser creates a user.
func NewUser(id uuid.UUID, name, xuid string) *User {
	return &User{id: id, name: name, xuid: xuid}
}

// userFromPlayer snapshots the identity of p.
func userFromPlayer(p *player.Player) *User {
	return NewUser(p.UUID(), p.Name(), p.XUID())
}

// UniqueID implements Identifiable.
func (u *User) UniqueID() uuid.UUID {
	return u.id
}

// Name returns the player name.
func (u *User) Name() string {
	return u.name
}

// XUID returns the Xbox user id, empty for offline-mode players.
func (u *User) XUID() string {
	return u.xuid
}

// String returns a string representation of the user for debugging.
func (u *User) String() string {
	return "User{Name: " + u.name + ", UUID: " + u.id.String() + "}"
}
