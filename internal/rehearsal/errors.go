package rehearsal

import (
	"fmt"
	"strings"

	"github.com/Nixie-Tech-LLC/troupe/internal/model"
)

// PartialSyncError reports a synchronization step that did not finish.
// Every step is a full replace, so running it again is safe.
type PartialSyncError struct {
	RehearsalID string
	Op          string
	Stage       string
	// Failed lists the members whose booking failed, if any.
	Failed []string
	Err    error
}

func (e *PartialSyncError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rehearsal %s: %s failed at %s", e.RehearsalID, e.Op, e.Stage)
	if len(e.Failed) > 0 {
		fmt.Fprintf(&b, " for %d member(s)", len(e.Failed))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *PartialSyncError) Unwrap() []error {
	if e.Err == nil {
		return []error{model.ErrPartialSync}
	}
	return []error{model.ErrPartialSync, e.Err}
}

func (e *PartialSyncError) Retryable() bool { return true }
