package errors

// Sentinel errors for the taxonomy in §7. Simulation packages wrap
// these with Wrap to add call-site context; callers should compare
// with errors.Is against these values (or the standard library's
// errors.Is, since Wrap's Unwrap chain is compatible with it).
var (
	// ErrInvalidInput covers non-positive tick/lot sizes, prices that
	// are not tick-aligned, and quantities that are not lot-aligned.
	ErrInvalidInput = New("invalid input")

	// ErrOrderNotFound is returned by cancel/modify for an unknown id.
	ErrOrderNotFound = New("order not found")

	// ErrDuplicateOrderID is returned when submitting an id already
	// in use by a live order.
	ErrDuplicateOrderID = New("duplicate order id")

	// ErrCrossed marks a post-only (GTX) order that would cross the
	// book on arrival. Callers observe this via order status EXPIRED,
	// not as a returned error, except where noted.
	ErrCrossed = New("order would cross the book")

	// ErrCorruptSnapshot is fatal: an incoming DEPTH_SNAPSHOT is
	// internally crossed (best bid >= best ask within the snapshot
	// itself).
	ErrCorruptSnapshot = New("depth snapshot is internally crossed")
)
