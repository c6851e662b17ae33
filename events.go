package sponge

import (
	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/cmd"
	"github.com/df-mc/dragonfly/server/item"
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/go-gl/mathgl/mgl64"
)

// Event types posted by PlayerHandler.
// Listeners depend on these instead of Dragonfly's handler signatures.

// PlayerEvent is implemented by every event caused by a player.
type PlayerEvent interface {
	Event
	Player() *player.Player
}

// BlockEvent is implemented by events targeting a block.
type BlockEvent interface {
	PlayerEvent
	BlockPosition() cube.Pos
}

// playerSource is embedded in player events.
type playerSource struct {
	player *player.Player
}

// Player returns the player that caused the event.
func (s playerSource) Player() *player.Player {
	return s.player
}

// JoinEvent is posted when a PlayerHandler is attached to a player.
type JoinEvent struct {
	BaseEvent
	playerSource
}

// QuitEvent is posted when a player leaves the server.
type QuitEvent struct {
	BaseEvent
	playerSource
}

// ChatEvent is posted when a player sends a chat message.
type ChatEvent struct {
	CancellableEvent
	playerSource
	Message *string
}

// BreakBlockEvent is posted when a player breaks a block.
type BreakBlockEvent struct {
	CancellableEvent
	playerSource
	Position cube.Pos
	Drops    *[]item.Stack
	XP       *int
}

// BlockPosition implements BlockEvent.
func (e *BreakBlockEvent) BlockPosition() cube.Pos { return e.Position }

// PlaceBlockEvent is posted when a player places a block.
type PlaceBlockEvent struct {
	CancellableEvent
	playerSource
	Position cube.Pos
	Block    world.Block
}

// BlockPosition implements BlockEvent.
func (e *PlaceBlockEvent) BlockPosition() cube.Pos { return e.Position }

// MoveEvent is posted when a player moves.
type MoveEvent struct {
	CancellableEvent
	playerSource
	From     mgl64.Vec3
	To       mgl64.Vec3
	Rotation cube.Rotation
}

// Distance returns the distance travelled.
func (e *MoveEvent) Distance() float64 {
	return e.To.Sub(e.From).Len()
}

// DamageEvent is posted when a player is hurt.
type DamageEvent struct {
	CancellableEvent
	playerSource
	Damage *float64
	Immune bool
	Source world.DamageSource
}

// DamageSource returns the source of the damage, or nil.
func (e *DamageEvent) DamageSource() world.DamageSource {
	return e.Source
}

// AttackEntityEvent is posted when a player attacks an entity.
type AttackEntityEvent struct {
	CancellableEvent
	playerSource
	Target   world.Entity
	Force    *float64
	Height   *float64
	Critical *bool
}

// Entity returns the attacked entity.
func (e *AttackEntityEvent) Entity() world.Entity {
	return e.Target
}

// InteractEntityEvent is posted when a player uses an item on an entity.
type InteractEntityEvent struct {
	CancellableEvent
	playerSource
	Target world.Entity
}

// Entity returns the entity interacted with.
func (e *InteractEntityEvent) Entity() world.Entity {
	return e.Target
}

// CommandEvent is posted when a player executes a command.
type CommandEvent struct {
	CancellableEvent
	playerSource
	Command cmd.Command
	Args    []string
}
