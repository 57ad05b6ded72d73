/*
workflow.go - Report workflow state machine

PURPOSE:
  Encodes the transition table for report approval and nothing else. The
  machine is pure: given a status and an action it answers "where to" or
  "not allowed". Atomicity and persistence live in the service/store.

TRANSITION TABLE:
  submit:          draft | changes_requested | rejected  -> submitted
  approve:         submitted                             -> approved
  reject:          submitted                             -> rejected
  request_changes: submitted                             -> changes_requested
  recall:          submitted | changes_requested | rejected -> draft

  recall from approved is refused outright (ErrRecallApproved): approval
  is durable.
*/
package report

// transitionRule defines the legal source states and target of an action.
type transitionRule struct {
	From []Status
	To   Status
}

var transitions = map[Action]transitionRule{
	ActionSubmit: {
		From: []Status{StatusDraft, StatusChangesRequested, StatusRejected},
		To:   StatusSubmitted,
	},
	ActionApprove: {
		From: []Status{StatusSubmitted},
		To:   StatusApproved,
	},
	ActionReject: {
		From: []Status{StatusSubmitted},
		To:   StatusRejected,
	},
	ActionRequestChanges: {
		From: []Status{StatusSubmitted},
		To:   StatusChangesRequested,
	},
	ActionRecall: {
		From: []Status{StatusSubmitted, StatusChangesRequested, StatusRejected},
		To:   StatusDraft,
	},
}

// NextStatus resolves the target status for an action from the given
// source status. Illegal combinations return a TransitionError; recalling
// an approved report returns ErrRecallApproved.
func NextStatus(reportID string, from Status, action Action) (Status, error) {
	if action == ActionRecall && from == StatusApproved {
		return "", ErrRecallApproved
	}

	rule, ok := transitions[action]
	if !ok {
		return "", &TransitionError{ReportID: reportID, Action: action, From: from}
	}
	for _, legal := range rule.From {
		if from == legal {
			return rule.To, nil
		}
	}
	return "", &TransitionError{ReportID: reportID, Action: action, From: from, Allowed: rule.From}
}

// CanTransition reports whether the action is legal from the status.
func CanTransition(from Status, action Action) bool {
	_, err := NextStatus("", from, action)
	return err == nil
}
