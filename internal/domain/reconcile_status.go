package domain

type ReconcileStatus string

const (
	ReconcileStatusPending   ReconcileStatus = "PENDING"
	ReconcileStatusVerifying ReconcileStatus = "VERIFYING"
	ReconcileStatusVerified  ReconcileStatus = "VERIFIED"
	ReconcileStatusFailed    ReconcileStatus = "FAILED"
)

var reconcileTransitions = map[ReconcileStatus][]ReconcileStatus{
	ReconcileStatusPending:   {ReconcileStatusVerifying, ReconcileStatusFailed},
	ReconcileStatusVerifying: {ReconcileStatusVerified, ReconcileStatusFailed},
}

func (s ReconcileStatus) IsTerminal() bool {
	return s == ReconcileStatusVerified || s == ReconcileStatusFailed
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s ReconcileStatus) CanTransitionTo(next ReconcileStatus) bool {
	for _, allowed := range reconcileTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// String representation (for logging)
func (s ReconcileStatus) String() string {
	return string(s)
}
