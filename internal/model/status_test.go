package model

import "testing"

func TestSessionState_IsActive(t *testing.T) {
	tests := []struct {
		state    SessionState
		expected bool
	}{
		{SessionIdle, false},
		{SessionCatalogReady, false},
		{SessionSelecting, true},
		{SessionAcquiring, true},
		{SessionMerging, true},
		{SessionSizing, true},
		{SessionDelivering, true},
		{SessionSucceeded, false},
		{SessionFailed, false},
	}

	for _, test := range tests {
		result := test.state.IsActive()
		if result != test.expected {
			t.Errorf("SessionState(%s).IsActive() = %v, expected %v", test.state, result, test.expected)
		}
	}
}

func TestSessionState_IsFinished(t *testing.T) {
	tests := []struct {
		state    SessionState
		expected bool
	}{
		{SessionIdle, false},
		{SessionCatalogReady, false},
		{SessionAcquiring, false},
		{SessionDelivering, false},
		{SessionSucceeded, true},
		{SessionFailed, true},
	}

	for _, test := range tests {
		result := test.state.IsFinished()
		if result != test.expected {
			t.Errorf("SessionState(%s).IsFinished() = %v, expected %v", test.state, result, test.expected)
		}
	}
}

func TestSessionState_CanTransition(t *testing.T) {
	tests := []struct {
		from     SessionState
		to       SessionState
		expected bool
	}{
		{SessionIdle, SessionCatalogReady, true},
		{SessionCatalogReady, SessionSelecting, true},
		{SessionSelecting, SessionAcquiring, true},
		{SessionAcquiring, SessionMerging, true},
		{SessionAcquiring, SessionSizing, true},
		{SessionMerging, SessionSizing, true},
		{SessionSizing, SessionDelivering, true},
		{SessionDelivering, SessionSucceeded, true},
		{SessionAcquiring, SessionFailed, true},
		{SessionIdle, SessionFailed, true},
		{SessionIdle, SessionAcquiring, false},
		{SessionDelivering, SessionAcquiring, false},
		{SessionSucceeded, SessionFailed, false},
		{SessionFailed, SessionIdle, false},
	}

	for _, test := range tests {
		result := test.from.CanTransition(test.to)
		if result != test.expected {
			t.Errorf("%s -> %s = %v, expected %v", test.from, test.to, result, test.expected)
		}
	}
}

func TestSessionState_String(t *testing.T) {
	state := SessionAcquiring
	expected := "Acquiring"
	result := state.String()

	if result != expected {
		t.Errorf("SessionState.String() = %s, expected %s", result, expected)
	}
}
