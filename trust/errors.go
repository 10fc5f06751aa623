package trust

import (
	"errors"
	"fmt"
	"time"
)

// ErrTargetUnavailable is returned by TargetDescription when resolution
// found no authorized description for the requested path. It is not a
// fault: it is the answer "this path is not authorized", and callers
// should not log it as an application error.
var ErrTargetUnavailable = errors.New("tuf: target unavailable")

// VerificationFailureError reports that a role's signatures did not meet
// its threshold.
type VerificationFailureError struct {
	Role string
	Got  int
	Need int
}

func (e *VerificationFailureError) Error() string {
	return fmt.Sprintf("tuf: %s: %d of %d required signatures verified", e.Role, e.Got, e.Need)
}

// ExpiredError reports that metadata's expiration has passed the injected
// clock's current time.
type ExpiredError struct {
	Role      string
	ExpiredAt time.Time
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("tuf: %s expired at %s", e.Role, e.ExpiredAt.Format(time.RFC3339))
}

// MalformedMetadataError reports a parse or structural failure, including
// a description mismatch between a role and its snapshot/timestamp entry.
type MalformedMetadataError struct {
	Reason string
}

func (e *MalformedMetadataError) Error() string {
	return "tuf: malformed metadata: " + e.Reason
}

// VersionLessThanCurrentError reports a rollback attempt: a role update
// whose version is lower than (or equal to, with different bytes) the
// currently trusted version.
type VersionLessThanCurrentError struct {
	Role    string
	Got     int
	Current int
}

func (e *VersionLessThanCurrentError) Error() string {
	return fmt.Sprintf("tuf: %s: version %d is not greater than current version %d", e.Role, e.Got, e.Current)
}

// MetadataNotFoundError reports that a required predecessor (a parent role
// or a prior admission) has not been admitted yet.
type MetadataNotFoundError struct {
	Path string
}

func (e *MetadataNotFoundError) Error() string {
	return fmt.Sprintf("tuf: metadata not found: %q", e.Path)
}

// NotAuthorizedError reports a delegation path mismatch, an unknown child
// role, or a key not present in the authorized set at the required
// threshold.
type NotAuthorizedError struct {
	Detail string
}

func (e *NotAuthorizedError) Error() string {
	return "tuf: not authorized: " + e.Detail
}

// EncodingError reports that canonicalization failed to round-trip, or
// that a storage fault-injection collaborator simulated a write failure.
type EncodingError struct {
	Detail string
}

func (e *EncodingError) Error() string {
	return "tuf: encoding error: " + e.Detail
}
