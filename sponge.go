// Package sponge provides filtered event listeners for Dragonfly servers.
//
// Plugins register plain funcs. The first parameter is the event; every
// further parameter is filled from the event's cause or context, as declared
// by one Filter per parameter:
//   - ContextValue reads a typed context slot such as OWNER or PLAYER
//   - Root, First, Last, Before, After and All query the cause chain
//   - Getter calls a method of the event
//
// A parameter that cannot be filled with a value of its type, or that fails
// its Include/Exclude type list, makes the event skip the listener. Skipping
// is not an error and is never reported.
//
// Each listener is compiled once, at registration, into a verified Shape:
// persistent fields such as resolved context keys, a constructor that
// initializes them, and a small dispatch program run for every event.
// Unknown context keys fail registration with *UnknownContextKeyError.
//
// # Quick Start
//
//	bund := sponge.NewBundle("protect").
//	    Listener(func(e *sponge.BreakBlockEvent, owner *sponge.User) {
//	        if !allowed(owner, e.Position) {
//	            e.SetCancelled(true)
//	        }
//	    }, sponge.Params(sponge.ContextValue(sponge.KeyOwner)))
//
//	mngr, err := sponge.NewBuilder().
//	    Bundle(bund).
//	    Init()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for p := range srv.Accept() {
//	    mngr.Attach(p)
//	}
//
// # Filters
//
//	sponge.ContextValue("OWNER")                                 // any owner assignable to the parameter
//	sponge.ContextValue("OWNER").Include(sponge.TypeOf[*User]()) // only users
//	sponge.ContextValue("OWNER").Exclude(sponge.TypeOf[*User]()) // anything but users
//	sponge.First()                                               // first cause object of the parameter type
//	sponge.After(sponge.TypeOf[*player.Player]())                // cause object after the player
//	sponge.All()                                                 // every cause object of the slice element type
//	sponge.Getter("Entity")                                      // e.Entity()
//
// # Listener Options
//
//	sponge.WithOrder(sponge.OrderEarly)     // dispatch position
//	sponge.WithCancelled(sponge.Undefined)  // also receive cancelled events
//	sponge.IncludeEvents(...)               // restrict event sub-types
package sponge

// Version is the sponge version.
const Version = "1.0.0"
