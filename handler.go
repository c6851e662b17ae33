package sponge

import (
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/df-mc/dragonfly/server/cmd"
	"github.com/df-mc/dragonfly/server/item"
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/world"
	"github.com/go-gl/mathgl/mgl64"
)

// hostKeys holds the context keys PlayerHandler fills in. A key missing
// from the registry stays nil and is never set.
type hostKeys struct {
	owner      *ContextKey
	player     *ContextKey
	damageType *ContextKey
	blockHit   *ContextKey
	usedItem   *ContextKey
	command    *ContextKey
}

func (m *EventManager) hostKeys() *hostKeys {
	m.keysOnce.Do(func() {
		lookup := func(name string) *ContextKey {
			k, _ := resolveContextKey(m.registry, name)
			return k
		}
		m.keys = hostKeys{
			owner:      lookup(KeyOwner),
			player:     lookup(KeyPlayer),
			damageType: lookup(KeyDamageType),
			blockHit:   lookup(KeyBlockHit),
			usedItem:   lookup(KeyUsedItem),
			command:    lookup(KeyCommand),
		}
	})
	return &m.keys
}

// PlayerHandler converts Dragonfly player callbacks into sponge events and
// posts them on an EventManager. A cancellable event that ends cancelled
// cancels the Dragonfly action.
//
// The cause of every event starts with the player followed by its User.
// The context carries PLAYER and, for actions performed by the player, OWNER.
//
// Concurrency:
// Dragonfly calls handlers synchronously within the world transaction, so
// listeners may access the player and its world.
type PlayerHandler struct {
	player.NopHandler

	manager *EventManager
	user    *User
}

// Compile-time check that PlayerHandler implements player.Handler.
var _ player.Handler = (*PlayerHandler)(nil)

// NewPlayerHandler creates a handler for p. It does not attach it.
func NewPlayerHandler(m *EventManager, p *player.Player) *PlayerHandler {
	return &PlayerHandler{manager: m, user: userFromPlayer(p)}
}

// Attach creates a PlayerHandler, installs it on p and posts a JoinEvent.
func (m *EventManager) Attach(p *player.Player) *PlayerHandler {
	h := NewPlayerHandler(m, p)
	p.Handle(h)
	m.Post(&JoinEvent{
		BaseEvent:    NewBaseEvent(h.cause(p, false, nil)),
		playerSource: playerSource{p},
	})
	return h
}

// User returns the identity of the handled player.
func (h *PlayerHandler) User() *User {
	return h.user
}

// cause builds the cause of an event of p. extra adds event specific
// context values.
func (h *PlayerHandler) cause(p *player.Player, owned bool, extra func(k *hostKeys, b *ContextBuilder)) *Cause {
	keys := h.manager.hostKeys()
	b := NewContextBuilder().Add(keys.player, p)
	if owned {
		b.Add(keys.owner, h.user)
	}
	if extra != nil {
		extra(keys, b)
	}
	return NewCause(b.Build(), p, h.user)
}

// post posts e and cancels ctx if e ended up cancelled.
func (h *PlayerHandler) post(ctx *player.Context, e Cancellable) {
	if h.manager.Post(e) {
		ctx.Cancel()
	}
}

// HandleChat handles the player sending a chat message.
func (h *PlayerHandler) HandleChat(ctx *player.Context, message *string) {
	p := ctx.Val()
	h.post(ctx, &ChatEvent{
		CancellableEvent: NewCancellableEvent(h.cause(p, true, nil)),
		playerSource:     playerSource{p},
		Message:          message,
	})
}

// HandleBlockBreak handles the player breaking a block.
func (h *PlayerHandler) HandleBlockBreak(ctx *player.Context, pos cube.Pos, drops *[]item.Stack, xp *int) {
	p := ctx.Val()
	snapshot := BlockSnapshot{Position: pos, Block: p.Tx().Block(pos)}
	h.post(ctx, &BreakBlockEvent{
		CancellableEvent: NewCancellableEvent(h.cause(p, true, func(k *hostKeys, b *ContextBuilder) {
			b.Add(k.blockHit, snapshot)
		})),
		playerSource: playerSource{p},
		Position:     pos,
		Drops:        drops,
		XP:           xp,
	})
}

// HandleBlockPlace handles the player placing a block.
func (h *PlayerHandler) HandleBlockPlace(ctx *player.Context, pos cube.Pos, b world.Block) {
	p := ctx.Val()
	h.post(ctx, &PlaceBlockEvent{
		CancellableEvent: NewCancellableEvent(h.cause(p, true, func(k *hostKeys, cb *ContextBuilder) {
			cb.Add(k.blockHit, BlockSnapshot{Position: pos, Block: b})
		})),
		playerSource: playerSource{p},
		Position:     pos,
		Block:        b,
	})
}

// HandleMove handles the player moving.
func (h *PlayerHandler) HandleMove(ctx *player.Context, newPos mgl64.Vec3, newRot cube.Rotation) {
	p := ctx.Val()
	h.post(ctx, &MoveEvent{
		CancellableEvent: NewCancellableEvent(h.cause(p, true, nil)),
		playerSource:     playerSource{p},
		From:             p.Position(),
		To:               newPos,
		Rotation:         newRot,
	})
}

// HandleHurt handles the player being hurt.
func (h *PlayerHandler) HandleHurt(ctx *player.Context, damage *float64, immune bool, attackImmunity *time.Duration, src world.DamageSource) {
	p := ctx.Val()
	h.post(ctx, &DamageEvent{
		CancellableEvent: NewCancellableEvent(h.cause(p, false, func(k *hostKeys, b *ContextBuilder) {
			b.Add(k.damageType, src)
		})),
		playerSource: playerSource{p},
		Damage:       damage,
		Immune:       immune,
		Source:       src,
	})
}

// HandleAttackEntity handles the player attacking an entity.
func (h *PlayerHandler) HandleAttackEntity(ctx *player.Context, e world.Entity, force, height *float64, critical *bool) {
	p := ctx.Val()
	held, _ := p.HeldItems()
	h.post(ctx, &AttackEntityEvent{
		CancellableEvent: NewCancellableEvent(h.cause(p, true, func(k *hostKeys, b *ContextBuilder) {
			b.Add(k.usedItem, held)
		})),
		playerSource: playerSource{p},
		Target:       e,
		Force:        force,
		Height:       height,
		Critical:     critical,
	})
}

// HandleItemUseOnEntity handles the player using an item on an entity.
func (h *PlayerHandler) HandleItemUseOnEntity(ctx *player.Context, e world.Entity) {
	p := ctx.Val()
	held, _ := p.HeldItems()
	h.post(ctx, &InteractEntityEvent{
		CancellableEvent: NewCancellableEvent(h.cause(p, true, func(k *hostKeys, b *ContextBuilder) {
			b.Add(k.usedItem, held)
		})),
		playerSource: playerSource{p},
		Target:       e,
	})
}

// HandleCommandExecution handles the player executing a command.
func (h *PlayerHandler) HandleCommandExecution(ctx *player.Context, command cmd.Command, args []string) {
	p := ctx.Val()
	h.post(ctx, &CommandEvent{
		CancellableEvent: NewCancellableEvent(h.cause(p, false, func(k *hostKeys, b *ContextBuilder) {
			b.Add(k.command, command.Name())
		})),
		playerSource: playerSource{p},
		Command:      command,
		Args:         args,
	})
}

// HandleQuit handles the player quitting the server.
func (h *PlayerHandler) HandleQuit(p *player.Player) {
	h.manager.Post(&QuitEvent{
		BaseEvent:    NewBaseEvent(h.cause(p, false, nil)),
		playerSource: playerSource{p},
	})
}
