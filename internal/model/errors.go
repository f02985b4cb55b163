package model

import "github.com/rotisserie/eris"

// Sentinel errors for the review subsystem. Callers classify failures with
// errors.Is through eris wrap chains; the API layer maps each sentinel to an
// HTTP status.
var (
	// ErrValidation marks a malformed or cross-account-referencing proposal.
	ErrValidation = eris.New("validation failed")

	// ErrNotFound marks an unknown cave, change request, or tag id.
	ErrNotFound = eris.New("not found")

	// ErrPermissionDenied marks a resolver denial for the required key/scope.
	ErrPermissionDenied = eris.New("permission denied")

	// ErrConflict marks an approval whose re-diff disagrees with the diff
	// recorded at submission time. The request stays Pending.
	ErrConflict = eris.New("change request conflict")

	// ErrInvariant marks a structural impossibility in a snapshot, such as
	// zero or multiple primary entrances. Folded into ErrValidation at the
	// submission boundary.
	ErrInvariant = eris.New("invariant violated")
)
