package session

import "testing"

func TestCanAdvanceTo_ForwardOnly(t *testing.T) {
	cases := []struct {
		from, to State
		want     bool
	}{
		{StateInitiated, StateRinging, true},
		{StateRinging, StateAnswered, true},
		{StateAnswered, StateRecording, true},
		{StateRecording, StateTranscribing, true},
		{StateTranscribing, StateCompleted, true},

		// Skipping intermediate states is allowed; webhooks arrive late
		// or not at all.
		{StateInitiated, StateCompleted, true},
		{StateAnswered, StateCompleted, true},
		{StateRinging, StateRecording, true},

		// Backwards moves are not.
		{StateAnswered, StateRinging, false},
		{StateCompleted, StateRinging, false},
		{StateTranscribing, StateRecording, false},

		// Failure is reachable from anywhere non-terminal.
		{StateInitiated, StateFailed, true},
		{StateTranscribing, StateFailed, true},
		{StateCompleted, StateFailed, false},
		{StateFailed, StateRinging, false},
		{StateFailed, StateCompleted, false},
	}
	for _, c := range cases {
		if got := c.from.CanAdvanceTo(c.to); got != c.want {
			t.Fatalf("CanAdvanceTo(%s -> %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestStateForStatus(t *testing.T) {
	cases := []struct {
		status string
		want   State
		ok     bool
	}{
		{StatusRinging, StateRinging, true},
		{StatusAnswered, StateAnswered, true},
		{StatusInProgress, StateAnswered, true},
		{StatusRecording, StateRecording, true},
		{StatusFailed, StateFailed, true},
		{StatusNoAnswer, StateFailed, true},
		{StatusBusy, StateFailed, true},
		{StatusCanceled, StateFailed, true},

		// Session completion is driven by the final transcript, not the
		// call-status callback.
		{StatusCompleted, "", false},
		{StatusQueued, "", false},
		{"some-new-provider-status", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := StateForStatus(c.status)
		if ok != c.ok || got != c.want {
			t.Fatalf("StateForStatus(%q) = (%q, %v), want (%q, %v)", c.status, got, ok, c.want, c.ok)
		}
	}
}

func TestTerminal(t *testing.T) {
	if !StateCompleted.Terminal() || !StateFailed.Terminal() {
		t.Fatalf("completed and failed must be terminal")
	}
	for _, s := range []State{StateInitiated, StateRinging, StateAnswered, StateRecording, StateTranscribing} {
		if s.Terminal() {
			t.Fatalf("%s must not be terminal", s)
		}
	}
}
