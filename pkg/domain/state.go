package domain

// legalTransitions is the complete transition relation for approval
// requests. PENDING fans out to every first-stage outcome; APPROVED may
// only be executed or lazily expired. Everything else is terminal.
var legalTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:  {StatusApproved, StatusRejected, StatusExpired, StatusCancelled},
	StatusApproved: {StatusExecuted, StatusExpired},
}

// CanTransition reports whether from -> to is a legal status transition.
func CanTransition(from, to RequestStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns an InvalidStateError naming the illegal pair when
// from -> to is not legal.
func CheckTransition(requestID string, from, to RequestStatus) error {
	if !CanTransition(from, to) {
		return &InvalidStateError{RequestID: requestID, From: from, To: to}
	}
	return nil
}
