package air

import (
	"fmt"
	"strings"
	"time"

	"github.com/rauschecker-sugrue-labs/air-download/internal/model"
)

// AuthError reports a failed login: either the request itself failed or
// the response carried no token. Fatal; a run never proceeds past it.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("AIR authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ArchiveError reports that the server refused to start a packaging
// job. Reason is the server's explanation, most often an invalid
// project or profile identifier. Per-exam; the run continues.
type ArchiveError struct {
	Reason string
}

func (e *ArchiveError) Error() string {
	if e.Reason == "" {
		return "server refused to start archive job"
	}
	return fmt.Sprintf("server refused to start archive job: %s", e.Reason)
}

// MentionsProject reports whether the server's reason points at the
// project identifier.
func (e *ArchiveError) MentionsProject() bool {
	return strings.Contains(strings.ToLower(e.Reason), "project")
}

// MentionsProfile reports whether the server's reason points at the
// anonymization profile identifier.
func (e *ArchiveError) MentionsProfile() bool {
	return strings.Contains(strings.ToLower(e.Reason), "profile")
}

// PollTimeoutError reports that a packaging job did not become ready
// within the polling deadline. Per-exam; the run continues.
type PollTimeoutError struct {
	Elapsed    time.Duration
	LastStatus model.ArchiveStatus
}

func (e *PollTimeoutError) Error() string {
	return fmt.Sprintf("archive job not ready after %s (last status %q)", e.Elapsed, e.LastStatus)
}
