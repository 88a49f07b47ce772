package scheduler

import "errors"

// Business-rule failures are returned as typed errors so the transport layer
// can map each one without string matching. The engine never retries; that
// decision belongs to the caller.
var (
	// ErrNotFound: a referenced appointment, client, professional or service
	// id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSlotUnavailable: the requested time overlaps an existing active
	// booking for the professional.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrPeakAccessDenied: a low-reliability client attempted to book a
	// peak-window slot.
	ErrPeakAccessDenied = errors.New("peak access denied for low-reliability client")

	// ErrAlreadyCancelled: cancel requested on an appointment that is
	// already cancelled.
	ErrAlreadyCancelled = errors.New("appointment already cancelled")

	// ErrInvalidTransition: a lifecycle operation was attempted from a
	// status it cannot legally leave.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrStoreUnavailable wraps transient storage failures (lost
	// connections, serialization aborts) so callers can decide to retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)
