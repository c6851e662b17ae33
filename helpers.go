package sponge

import (
	"github.com/df-mc/dragonfly/server/cmd"
	"github.com/df-mc/dragonfly/server/item"
	"github.com/df-mc/dragonfly/server/player"
	"github.com/df-mc/dragonfly/server/player/form"
)

// handlerOf extracts the PlayerHandler from a player's handler.
// Returns nil if the player is nil or not handled by sponge.
func handlerOf(p *player.Player) *PlayerHandler {
	if p == nil {
		return nil
	}
	h, ok := p.Handler().(*PlayerHandler)
	if !ok {
		return nil
	}
	return h
}

// Command extracts the player and its User from a command source, so that
// commands can build causes for the events they post.
// Returns (nil, nil) if the source is not a player or is not handled by sponge.
//
// Usage:
//
//	func (c MyCommand) Run(src cmd.Source, out *cmd.Output, tx *world.Tx) {
//	    p, user := sponge.Command(src)
//	    if p == nil {
//	        out.Error("Player-only command")
//	        return
//	    }
//	    ctx := sponge.NewContextBuilder().Add(ownerKey, user).Build()
//	    mngr.Post(NewMyEvent(sponge.NewCause(ctx, p, user)))
//	}
func Command(src cmd.Source) (*player.Player, *User) {
	p, ok := src.(*player.Player)
	if !ok {
		return nil, nil
	}
	return playerUser(p)
}

// Form extracts the player and its User from a form submitter.
// Returns (nil, nil) if the submitter is not a player or is not handled by sponge.
func Form(sub form.Submitter) (*player.Player, *User) {
	p, ok := sub.(*player.Player)
	if !ok {
		return nil, nil
	}
	return playerUser(p)
}

// Item extracts the player and its User from an item user.
// Returns (nil, nil) if the user is not a player or is not handled by sponge.
func Item(user item.User) (*player.Player, *User) {
	p, ok := user.(*player.Player)
	if !ok {
		return nil, nil
	}
	return playerUser(p)
}

func playerUser(p *player.Player) (*player.Player, *User) {
	h := handlerOf(p)
	if h == nil {
		return nil, nil
	}
	return p, h.user
}
