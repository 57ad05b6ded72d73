package report

import (
	"errors"
	"testing"
)

func TestNextStatus_TransitionTable(t *testing.T) {
	cases := []struct {
		from   Status
		action Action
		want   Status
		ok     bool
	}{
		{StatusDraft, ActionSubmit, StatusSubmitted, true},
		{StatusChangesRequested, ActionSubmit, StatusSubmitted, true},
		{StatusRejected, ActionSubmit, StatusSubmitted, true},
		{StatusSubmitted, ActionSubmit, "", false},
		{StatusApproved, ActionSubmit, "", false},

		{StatusSubmitted, ActionApprove, StatusApproved, true},
		{StatusDraft, ActionApprove, "", false},
		{StatusApproved, ActionApprove, "", false},

		{StatusSubmitted, ActionReject, StatusRejected, true},
		{StatusSubmitted, ActionRequestChanges, StatusChangesRequested, true},
		{StatusChangesRequested, ActionRequestChanges, "", false},

		{StatusSubmitted, ActionRecall, StatusDraft, true},
		{StatusChangesRequested, ActionRecall, StatusDraft, true},
		{StatusRejected, ActionRecall, StatusDraft, true},
		{StatusDraft, ActionRecall, "", false},
	}

	for _, tc := range cases {
		got, err := NextStatus("r1", tc.from, tc.action)
		if tc.ok {
			if err != nil {
				t.Errorf("%s from %s: unexpected error %v", tc.action, tc.from, err)
				continue
			}
			if got != tc.want {
				t.Errorf("%s from %s: expected %s, got %s", tc.action, tc.from, tc.want, got)
			}
			continue
		}
		if err == nil {
			t.Errorf("%s from %s: expected error, got %s", tc.action, tc.from, got)
		}
	}
}

func TestNextStatus_RecallApproved_IsPermissionError(t *testing.T) {
	// GIVEN: An approved report
	// WHEN: Recalling it
	// THEN: ErrRecallApproved, not a generic transition error - approval
	//       is durable and the API maps this to 403, not 409

	_, err := NextStatus("r1", StatusApproved, ActionRecall)

	if !errors.Is(err, ErrRecallApproved) {
		t.Fatalf("expected ErrRecallApproved, got %v", err)
	}
	var te *TransitionError
	if errors.As(err, &te) {
		t.Error("recall-from-approved must not classify as a TransitionError")
	}
}

func TestNextStatus_IllegalTransition_ReportsAllowedSources(t *testing.T) {
	_, err := NextStatus("r1", StatusDraft, ActionApprove)

	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransitionError, got %v", err)
	}
	if te.From != StatusDraft || te.Action != ActionApprove {
		t.Errorf("unexpected error detail: %+v", te)
	}
	if len(te.Allowed) != 1 || te.Allowed[0] != StatusSubmitted {
		t.Errorf("expected allowed=[submitted], got %v", te.Allowed)
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(StatusDraft, ActionSubmit) {
		t.Error("submit from draft should be legal")
	}
	if CanTransition(StatusApproved, ActionRecall) {
		t.Error("recall from approved should be refused")
	}
}
