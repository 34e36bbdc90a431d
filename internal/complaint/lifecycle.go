package complaint

import (
	"complaintflow/backend/internal/analysis"
	"complaintflow/backend/internal/classifier"
	"complaintflow/backend/internal/config"
	"complaintflow/backend/internal/models"
	"complaintflow/backend/internal/notify"
	"complaintflow/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// doneHint is the status hint that closes a complaint on an ok decision.
const doneHint = "done"

// ExecutorUpdate is one executor's response to a complaint.
type ExecutorUpdate struct {
	ExecutorID int64 `json:"executor_id" validate:"required,gt=0"`
	// ResponseText must be present; an empty string is allowed.
	ResponseText *string    `json:"response_text" validate:"required"`
	StatusHint   *string    `json:"status,omitempty" validate:"omitempty,max=64"`
	ExecutedAt   *time.Time `json:"executed_at,omitempty"`
}

func (u ExecutorUpdate) Validate() error {
	return validateStruct(u)
}

// done reports whether the hint asks to close the complaint: "done", or any
// name that resolves to the policy's resolved status ("completed" included).
func (u ExecutorUpdate) done(policy config.Lifecycle) bool {
	if u.StatusHint == nil {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(*u.StatusHint), doneHint) {
		return true
	}
	st, ok := policy.ParseStatus(*u.StatusHint)
	return ok && st == policy.ResolvedStatus
}

// transition is the single outcome of one executor update. resolved means
// the response text becomes the complaint resolution.
type transition struct {
	status     models.ComplaintStatus
	executorID *int64
	final      bool
	resolved   bool
	reason     string
	notify     *notify.Notification
}

// HandleExecutorUpdate records the response, classifies it and applies
// exactly one transition. History, complaint and status entry are written in
// one transaction with the complaint row locked; a classifier failure rolls
// all of it back. The notification, if any, is sent after commit.
func (s *Service) HandleExecutorUpdate(ctx context.Context, complaintID int64, upd ExecutorUpdate) (*models.Complaint, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	log := s.Logger.With(zap.Int64("complaint_id", complaintID), zap.Int64("executor_id", upd.ExecutorID))

	var (
		updated *models.Complaint
		pending *notify.Notification
	)
	err := s.Storage.Transaction(ctx, func(tx storage.Storage) error {
		c, err := tx.GetComplaintForUpdate(ctx, complaintID)
		if err != nil {
			return err
		}
		if c.Status.IsTerminal() {
			return fmt.Errorf("complaint %d is %s: %w", complaintID, c.Status, ErrTerminalStatus)
		}
		if c.ExecutorID != nil && !c.AssignedTo(upd.ExecutorID) {
			log.Warn("response from an executor that is not assigned", zap.Int64("assigned_executor_id", *c.ExecutorID))
		}

		history, err := tx.GetOrCreateHistory(ctx, complaintID)
		if err != nil {
			return fmt.Errorf("load history: %w", err)
		}

		now := s.now()
		executedAt := now
		if upd.ExecutedAt != nil {
			executedAt = *upd.ExecutedAt
		}
		history.Record(upd.ExecutorID, models.ExecutorResponse{
			Response:   *upd.ResponseText,
			Status:     upd.StatusHint,
			ExecutedAt: executedAt,
		})

		result, err := s.classify(ctx, c, upd, executedAt)
		if err != nil {
			return err
		}

		statuses, err := tx.ListStatuses(ctx, complaintID)
		if err != nil {
			return fmt.Errorf("load status history: %w", err)
		}

		t, err := s.decide(ctx, tx, c, upd, result, history, statuses, now)
		if err != nil {
			return err
		}

		s.apply(c, upd, t, now)

		if err := tx.SaveHistory(ctx, history); err != nil {
			return fmt.Errorf("save history: %w", err)
		}
		if err := tx.UpdateComplaint(ctx, c); err != nil {
			return fmt.Errorf("save complaint: %w", err)
		}
		entry := &models.StatusEntry{
			ComplaintID: complaintID,
			Status:      c.Status,
			ExecutorID:  c.ExecutorID,
			SortOrder:   len(statuses) + 1,
			CreatedAt:   now,
		}
		if t.reason != "" {
			entry.Description = &t.reason
		}
		if err := tx.AppendStatus(ctx, entry); err != nil {
			return fmt.Errorf("append status: %w", err)
		}

		updated, pending = c, t.notify
		return nil
	})
	if err != nil {
		var ce *classifier.Error
		if errors.As(err, &ce) {
			log.Warn("executor update rejected by classifier", zap.String("kind", string(ce.Kind)), zap.Error(err))
		}
		return nil, err
	}

	log.Info("executor update applied", zap.String("status", string(updated.Status)))

	if pending != nil {
		if err := s.Notifier.Notify(ctx, *pending); err != nil {
			log.Warn("notification delivery failed", zap.String("kind", string(pending.Kind)), zap.Error(err))
		}
	}
	return updated, nil
}

// classify calls the classifier and guarantees that every failure comes
// back as a *classifier.Error.
func (s *Service) classify(ctx context.Context, c *models.Complaint, upd ExecutorUpdate, executedAt time.Time) (classifier.Result, error) {
	req := classifier.Request{
		ComplaintID:          c.ComplaintID,
		ComplaintDescription: c.Description,
		District:             c.District,
		ExecutorID:           upd.ExecutorID,
		ExecutorResponse:     *upd.ResponseText,
		StatusHint:           upd.StatusHint,
		ExecutedAt:           upd.ExecutedAt,
		Timing:               analysis.ComputeTiming(c.CreatedAt, executedAt, s.Policy.ExpectedResolutionDays),
	}
	if req.Timing.Overdue() {
		s.Logger.Info("executor response is overdue",
			zap.Int64("complaint_id", c.ComplaintID),
			zap.Int64("executor_id", upd.ExecutorID),
			zap.Float64("delay_days", req.Timing.DelayDays))
	}

	res, err := s.Classifier.Classify(ctx, req)
	if err == nil {
		return res, nil
	}
	var ce *classifier.Error
	if errors.As(err, &ce) {
		return classifier.Result{}, err
	}
	kind := classifier.KindTransport
	if errors.Is(err, context.DeadlineExceeded) {
		kind = classifier.KindTimeout
	}
	return classifier.Result{}, &classifier.Error{Kind: kind, Err: err}
}

// decide picks the transition. Precedence: forward, then bounce, then ok.
func (s *Service) decide(ctx context.Context, tx storage.Storage, c *models.Complaint, upd ExecutorUpdate,
	res classifier.Result, history *models.ComplaintHistory, statuses []models.StatusEntry, now time.Time) (transition, error) {

	switch {
	case res.Forward() && res.Target() != "":
		target, err := resolveExecutor(ctx, tx, res.Target())
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				return transition{}, fmt.Errorf("resolve forward target: %w", err)
			}
			reason := fmt.Sprintf("forward target %q could not be resolved", res.Target())
			return s.block(c.ComplaintID, reason, now), nil
		}

		if s.Policy.LoopPolicy == config.LoopBlock && visited(history, statuses, target.ExecutorID) {
			reason := fmt.Sprintf("routing loop: executor %d (%s) already handled this complaint", target.ExecutorID, target.Name)
			return s.block(c.ComplaintID, reason, now), nil
		}

		id := target.ExecutorID
		n := notify.Redirected(c.ComplaintID, id, s.Policy.ForwardStatus, res.Notes(), now)
		return transition{
			status:     s.Policy.ForwardStatus,
			executorID: &id,
			reason:     res.Notes(),
			notify:     &n,
		}, nil

	case res.Forward() || res.Bounce():
		reason := res.Notes()
		if reason == "" {
			reason = config.DefaultBounceReason
		}
		return s.block(c.ComplaintID, reason, now), nil

	default:
		if upd.done(s.Policy) {
			return transition{status: s.Policy.ResolvedStatus, final: true, resolved: true, reason: res.Notes()}, nil
		}
		return transition{status: models.StatusInProgressResponsible, resolved: true, reason: res.Notes()}, nil
	}
}

func (s *Service) block(complaintID int64, reason string, now time.Time) transition {
	n := notify.Blocked(complaintID, reason, now)
	return transition{
		status: models.StatusBlockWorkflow,
		final:  true,
		reason: reason,
		notify: &n,
	}
}

// apply mutates c according to t.
func (s *Service) apply(c *models.Complaint, upd ExecutorUpdate, t transition, now time.Time) {
	c.Status = t.status
	if t.executorID != nil {
		c.ExecutorID = t.executorID
	}
	if t.resolved {
		resolution := *upd.ResponseText
		c.Resolution = &resolution
		if upd.ExecutedAt != nil {
			at := *upd.ExecutedAt
			c.ExecutionDate = &at
		}
	}
	if t.final {
		c.MarkFinal(now)
	}
}

// resolveExecutor finds an active executor by name, or by id when the model
// returned a number. Inactive executors resolve to ErrNotFound.
func resolveExecutor(ctx context.Context, tx storage.Storage, target string) (*models.Executor, error) {
	e, err := tx.FindExecutorByName(ctx, target)
	if errors.Is(err, storage.ErrNotFound) {
		if id, convErr := strconv.ParseInt(target, 10, 64); convErr == nil && id > 0 {
			e, err = tx.GetExecutor(ctx, id)
		}
	}
	if err != nil {
		return nil, err
	}
	if !e.IsActive {
		return nil, fmt.Errorf("executor %d is inactive: %w", e.ExecutorID, storage.ErrNotFound)
	}
	return e, nil
}

// visited reports whether executorID has already handled the complaint,
// either by responding (history, including the response being processed) or
// by being assigned through a status transition.
func visited(history *models.ComplaintHistory, statuses []models.StatusEntry, executorID int64) bool {
	if history.HasExecutor(executorID) {
		return true
	}
	for _, st := range statuses {
		if st.ExecutorID != nil && *st.ExecutorID == executorID {
			return true
		}
	}
	return false
}
