package link

import "errors"

// Domain-specific errors for link operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrTimeout is returned when association does not complete within the timeout.
	ErrTimeout = errors.New("link: association timed out")

	// ErrUnavailable is returned when the driver cannot start association at all.
	ErrUnavailable = errors.New("link: network unavailable")

	// ErrInvalidSSID is returned when an empty SSID is supplied.
	ErrInvalidSSID = errors.New("link: ssid cannot be empty")

	// ErrInvalidTimeout is returned when a non-positive timeout is supplied.
	ErrInvalidTimeout = errors.New("link: timeout must be positive")

	// ErrNoCandidates is returned when Acquire is called with an empty list.
	ErrNoCandidates = errors.New("link: no access point candidates")

	// ErrAllCandidatesFailed is returned when every candidate failed to associate.
	ErrAllCandidatesFailed = errors.New("link: all access points failed")
)
