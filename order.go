package sponge

// Order determines when a listener runs relative to the other listeners of
// the same event. Listeners are called in ascending order, then in
// registration order.
type Order int

const (
	// OrderPre runs first. Use for setup that must see the untouched event.
	OrderPre Order = iota

	// OrderAfterPre runs after pre-processing.
	OrderAfterPre

	// OrderFirst is the first order in which the event should be modified.
	OrderFirst

	// OrderEarly runs before the default order.
	OrderEarly

	// OrderDefault is used when a listener does not ask for an order.
	OrderDefault

	// OrderLate runs after the default order.
	OrderLate

	// OrderLast is the last order in which the event should be modified.
	OrderLast

	// OrderBeforePost runs before post-processing.
	OrderBeforePost

	// OrderPost runs last. Use for monitoring the final outcome; listeners
	// here should not modify the event.
	OrderPost

	// orderCount is the total number of orders.
	orderCount
)

// String returns the string representation of the order.
func (o Order) String() string {
	switch o {
	case OrderPre:
		return "Pre"
	case OrderAfterPre:
		return "AfterPre"
	case OrderFirst:
		return "First"
	case OrderEarly:
		return "Early"
	case OrderDefault:
		return "Default"
	case OrderLate:
		return "Late"
	case OrderLast:
		return "Last"
	case OrderBeforePost:
		return "BeforePost"
	case OrderPost:
		return "Post"
	default:
		return "Unknown"
	}
}

// valid reports whether o is one of the declared orders.
func (o Order) valid() bool {
	return o >= OrderPre && o < orderCount
}
