package config

import (
	"complaintflow/backend/internal/models"
	"fmt"
	"strings"
	"time"
)

// LoopPolicy decides what happens when a complaint is forwarded to an
// executor that already appears in its status history.
type LoopPolicy string

const (
	LoopBlock   LoopPolicy = "block"
	LoopForward LoopPolicy = "forward"
)

const (
	// Classifier
	DefaultClassifierTimeout   = 20 * time.Second
	DefaultClassifierMaxTokens = 400
	DefaultClassifierModel     = "gpt-4o-mini"

	// Timing
	DefaultExpectedResolutionDays = 10

	// Listing
	DefaultListLimit = 50
	MaxListLimit     = 200

	DefaultBounceReason = "executor bounced request without target"
)

// Lifecycle is the policy surface of the complaint state machine.
type Lifecycle struct {
	// ForwardStatus is set when a complaint is handed to a new executor.
	ForwardStatus models.ComplaintStatus `validate:"oneof=redirected assigned_responsible"`
	// ResolvedStatus is the terminal status for a "done" response.
	ResolvedStatus models.ComplaintStatus `validate:"oneof=moderated closed"`
	LoopPolicy     LoopPolicy             `validate:"oneof=block forward"`
	// ExpectedResolutionDays feeds the timing metrics sent to the classifier.
	ExpectedResolutionDays int `validate:"gt=0"`
}

// DefaultLifecycle returns the policy used when nothing is configured.
func DefaultLifecycle() Lifecycle {
	return Lifecycle{
		ForwardStatus:          models.StatusRedirected,
		ResolvedStatus:         models.StatusModerated,
		LoopPolicy:             LoopBlock,
		ExpectedResolutionDays: DefaultExpectedResolutionDays,
	}
}

// CompletedAlias is the legacy name for whatever ResolvedStatus is.
const CompletedAlias = "completed"

// ParseStatus is models.ParseStatus plus the "completed" alias, which
// resolves to the configured ResolvedStatus.
func (l Lifecycle) ParseStatus(raw string) (models.ComplaintStatus, bool) {
	if strings.EqualFold(strings.TrimSpace(raw), CompletedAlias) {
		return l.ResolvedStatus, true
	}
	return models.ParseStatus(raw)
}

func parseLifecycleStatus(raw string, fallback models.ComplaintStatus) (models.ComplaintStatus, error) {
	if raw == "" {
		return fallback, nil
	}
	s, ok := models.ParseStatus(raw)
	if !ok {
		return "", fmt.Errorf("unknown complaint status %q", raw)
	}
	return s, nil
}
