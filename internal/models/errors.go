package models

import "errors"

// Error taxonomy for the dispatch pipeline. Callers classify failures with
// errors.Is; operations wrap these with context via fmt.Errorf and %w.
var (
	// ErrNotFound: a referenced store/product/warehouse/agent/vehicle/order
	// does not exist. The operation aborts with no partial state.
	ErrNotFound = errors.New("not found")

	// ErrUnprocessable: insufficient inventory, no suitable van, capacity
	// exceeded. Surfaced to the caller or recovered into a terminal state,
	// never a silent no-op.
	ErrUnprocessable = errors.New("unprocessable")

	// ErrConflict: a vehicle is already bound to a different agent. The
	// operation aborts before any write.
	ErrConflict = errors.New("conflict")

	// ErrInvalidInput: malformed line items or non-positive quantities,
	// rejected before any store access.
	ErrInvalidInput = errors.New("invalid input")
)
