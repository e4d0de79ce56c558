package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
)

// Selector acquires a network by trying access points in priority order.
//
// Ordering is a policy decision (stable home network before a mobile
// hotspot), so it comes entirely from configuration and is deterministic.
type Selector struct {
	link    Link
	timeout time.Duration
	pause   time.Duration
	logger  Logger
}

// NewSelector creates a Selector that gives each candidate timeout to
// associate and waits pause between a failed candidate and the next one.
func NewSelector(l Link, timeout, pause time.Duration) *Selector {
	return &Selector{
		link:    l,
		timeout: timeout,
		pause:   pause,
		logger:  logging.Discard(),
	}
}

// SetLogger sets a logger for candidate progress.
func (s *Selector) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Link returns the link the selector drives.
func (s *Selector) Link() Link {
	return s.link
}

// Acquire connects to the first candidate that associates.
//
// Candidates are tried in ascending priority, each exactly once, and the
// search stops at the first success.
//
// Returns:
//   - Credential: the candidate that associated
//   - error: ErrNoCandidates for an empty list, ErrAllCandidatesFailed
//     (joined with every candidate's error) when none associated
func (s *Selector) Acquire(ctx context.Context, candidates []Credential) (Credential, error) {
	if len(candidates) == 0 {
		return Credential{}, ErrNoCandidates
	}

	ordered := SortCredentials(candidates)
	failures := make([]error, 0, len(ordered))

	for i, cred := range ordered {
		err := s.link.Connect(ctx, cred.SSID, cred.Passphrase, s.timeout)
		if err == nil {
			s.logger.Info("network acquired", "ssid", cred.SSID, "priority", cred.Priority)
			return cred, nil
		}
		failures = append(failures, err)

		if ctx.Err() != nil {
			return Credential{}, fmt.Errorf("acquiring network: %w", ctx.Err())
		}

		if i < len(ordered)-1 {
			s.logger.Info("trying next access point", "failed", cred.SSID, "next", ordered[i+1].SSID)
			if s.pause > 0 {
				if err := sleepContext(ctx, s.pause); err != nil {
					return Credential{}, fmt.Errorf("acquiring network: %w", err)
				}
			}
		}
	}

	return Credential{}, fmt.Errorf("%w: %w", ErrAllCandidatesFailed, errors.Join(failures...))
}
