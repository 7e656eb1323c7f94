package document

import "time"

// StageResult is the outcome of one stage action, produced by the transition
// function and consumed by the persistence adapter.
//
// Three shapes are meaningful:
//   - Success true: the stage acted; NextStatus and Payload describe the
//     change to persist.
//   - Success false with an empty ErrorMessage: the in-progress sentinel.
//     The external job is still running; nothing changed, retry next sweep.
//   - Success false with a non-empty ErrorMessage: a real stage failure;
//     NextStatus is Error.
type StageResult struct {
	Success      bool      `json:"success"`
	NextStatus   Status    `json:"next_status,omitempty"`
	Payload      string    `json:"payload,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	When         time.Time `json:"when"`

	// URL carries a refreshed presigned URL when the stage action moved the
	// object between tiers or re-signed it. Persisted alongside the status
	// write when non-empty.
	URL string `json:"url,omitempty"`
}

// InProgress reports whether r is the in-progress sentinel: no change yet,
// try again on a later sweep. Never a failure.
func (r StageResult) InProgress() bool {
	return !r.Success && r.ErrorMessage == ""
}

// Completed returns a successful result moving the document to next.
// The meaning of payload depends on next (task id or stage text).
func Completed(next Status, payload string) StageResult {
	return StageResult{
		Success:    true,
		NextStatus: next,
		Payload:    payload,
		When:       time.Now().UTC(),
	}
}

// Pending returns the in-progress sentinel.
func Pending() StageResult {
	return StageResult{When: time.Now().UTC()}
}

// Failed returns a failed result carrying a human-readable cause. The
// document moves to Error and the message becomes its ErrorText.
func Failed(msg string) StageResult {
	return StageResult{
		NextStatus:   StatusError,
		ErrorMessage: msg,
		When:         time.Now().UTC(),
	}
}
