package model

// SessionState represents the lifecycle position of one conversation session
type SessionState string

const (
	// SessionIdle means the session was opened but no catalog is loaded yet
	SessionIdle SessionState = "Idle"

	// SessionCatalogReady means the catalog and ladder were built and offered
	SessionCatalogReady SessionState = "CatalogReady"

	// SessionSelecting means a quality level was chosen and is being resolved
	SessionSelecting SessionState = "Selecting"

	// SessionAcquiring means the selected streams are being transferred
	SessionAcquiring SessionState = "Acquiring"

	// SessionMerging means separate streams are being muxed or transcoded
	SessionMerging SessionState = "Merging"

	// SessionSizing means the artifact is being checked and split
	SessionSizing SessionState = "Sizing"

	// SessionDelivering means delivery units are being sent
	SessionDelivering SessionState = "Delivering"

	// SessionSucceeded means the artifact was delivered
	SessionSucceeded SessionState = "Succeeded"

	// SessionFailed means the session ended with an unrecoverable error
	SessionFailed SessionState = "Failed"
)

// String returns the string representation of SessionState
func (s SessionState) String() string {
	return string(s)
}

// IsActive returns true once the pipeline has committed to an acquisition.
// A new inbound link must be rejected while the session is active.
func (s SessionState) IsActive() bool {
	switch s {
	case SessionSelecting, SessionAcquiring, SessionMerging, SessionSizing, SessionDelivering:
		return true
	}
	return false
}

// IsFinished returns true if the session reached a terminal state
func (s SessionState) IsFinished() bool {
	return s == SessionSucceeded || s == SessionFailed
}

// CanTransition reports whether moving from s to next is a legal step.
// Any non-terminal state may fail; Idle is only entered by a new session.
func (s SessionState) CanTransition(next SessionState) bool {
	if s.IsFinished() {
		return false
	}
	if next == SessionFailed {
		return true
	}
	switch s {
	case SessionIdle:
		return next == SessionCatalogReady
	case SessionCatalogReady:
		return next == SessionSelecting
	case SessionSelecting:
		return next == SessionAcquiring
	case SessionAcquiring:
		return next == SessionMerging || next == SessionSizing
	case SessionMerging:
		return next == SessionSizing
	case SessionSizing:
		return next == SessionDelivering
	case SessionDelivering:
		return next == SessionSucceeded
	}
	return false
}
