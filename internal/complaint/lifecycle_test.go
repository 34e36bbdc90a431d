package complaint

import (
	"complaintflow/backend/internal/classifier"
	"complaintflow/backend/internal/config"
	"complaintflow/backend/internal/models"
	"complaintflow/backend/internal/notify"
	"complaintflow/backend/internal/storage"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var testNow = time.Date(2026, 5, 20, 12, 0, 0, 0, time.UTC)

type stubClassifier struct {
	result classifier.Result
	err    error
	calls  int
	last   classifier.Request
}

func (s *stubClassifier) Classify(_ context.Context, req classifier.Request) (classifier.Result, error) {
	s.calls++
	s.last = req
	return s.result, s.err
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

type fixture struct {
	svc      *Service
	store    *storage.MemoryStorage
	cls      *stubClassifier
	notifier *recordingNotifier

	uk, duk, retired *models.Executor
	complaint        *models.Complaint
}

func newFixture(t *testing.T, policy config.Lifecycle) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store:    storage.NewMemoryStorage(),
		cls:      &stubClassifier{},
		notifier: &recordingNotifier{},
	}
	f.svc = NewService(f.store, f.cls, f.notifier, policy, nil)
	f.svc.now = func() time.Time { return testNow }

	var err error
	f.uk, err = f.svc.CreateExecutor(ctx, ExecutorInput{Name: "Управляющая компания"})
	require.NoError(t, err)
	f.duk, err = f.svc.CreateExecutor(ctx, ExecutorInput{Name: "ДУК Приокского района"})
	require.NoError(t, err)
	inactive := false
	f.retired, err = f.svc.CreateExecutor(ctx, ExecutorInput{Name: "Старый подрядчик", IsActive: &inactive})
	require.NoError(t, err)

	f.complaint, err = f.svc.CreateComplaint(ctx, NewComplaint{
		Description: "broken streetlight",
		ExecutorID:  &f.uk.ExecutorID,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) update(executorID int64, text string) (*models.Complaint, error) {
	return f.svc.HandleExecutorUpdate(context.Background(), f.complaint.ComplaintID, ExecutorUpdate{
		ExecutorID:   executorID,
		ResponseText: &text,
	})
}

func (f *fixture) reload(t *testing.T) *models.Complaint {
	t.Helper()
	c, err := f.store.GetComplaint(context.Background(), f.complaint.ComplaintID)
	require.NoError(t, err)
	return c
}

func strPtr(s string) *string { return &s }

func TestHandleExecutorUpdate_ForwardToKnownExecutor(t *testing.T) {
	// Arrange
	f := newFixture(t, config.DefaultLifecycle())
	f.cls.result = classifier.Result{
		Decision:           classifier.DecisionForward,
		TargetExecutorName: strPtr("ДУК Приокского района"),
		ModeratorMessage:   strPtr("передано в ДУК"),
	}

	// Act
	got, err := f.update(f.uk.ExecutorID, "Заявка передана в ДУК Приокского района")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.StatusRedirected, got.Status)
	require.NotNil(t, got.ExecutorID)
	assert.Equal(t, f.duk.ExecutorID, *got.ExecutorID)
	assert.Nil(t, got.FinalStatusAt)
	assert.Nil(t, got.Resolution)

	h, err := f.svc.GetHistory(context.Background(), f.complaint.ComplaintID)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.uk.ExecutorID}, []int64(h.ExecutorIDs))
	resp, ok := h.Response(f.uk.ExecutorID)
	require.True(t, ok)
	assert.Equal(t, "Заявка передана в ДУК Приокского района", resp.Response)
	assert.Equal(t, testNow, resp.ExecutedAt)

	require.Len(t, f.notifier.got, 1)
	assert.Equal(t, notify.KindRedirected, f.notifier.got[0].Kind)
	assert.Equal(t, "передано в ДУК", f.notifier.got[0].Reason)

	statuses, err := f.svc.ListStatuses(context.Background(), f.complaint.ComplaintID)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, 2, statuses[1].SortOrder)
	assert.Equal(t, models.StatusRedirected, statuses[1].Status)
	assert.Equal(t, f.duk.ExecutorID, *statuses[1].ExecutorID)
}

func TestHandleExecutorUpdate_ForwardStatusFromPolicy(t *testing.T) {
	policy := config.DefaultLifecycle()
	policy.ForwardStatus = models.StatusAssignedResponsible
	f := newFixture(t, policy)
	f.cls.result = classifier.Result{Decision: classifier.DecisionForward, TargetExecutorName: strPtr("  дук приокского района ")}

	got, err := f.update(f.uk.ExecutorID, "передали")

	require.NoError(t, err)
	assert.Equal(t, models.StatusAssignedResponsible, got.Status)
	assert.Equal(t, f.duk.ExecutorID, *got.ExecutorID)
}

func TestHandleExecutorUpdate_BlockingBounce(t *testing.T) {
	tests := []struct {
		name       string
		message    *string
		wantReason string
	}{
		{name: "with moderator message", message: strPtr("исполнитель отказался"), wantReason: "исполнитель отказался"},
		{name: "default reason", wantReason: config.DefaultBounceReason},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.DefaultLifecycle())
			f.cls.result = classifier.Result{
				Decision:         classifier.DecisionStop,
				IsBlockingBounce: true,
				ModeratorMessage: tt.message,
			}

			got, err := f.update(f.uk.ExecutorID, "Это не к нам")

			require.NoError(t, err)
			assert.Equal(t, models.StatusBlockWorkflow, got.Status)
			require.NotNil(t, got.FinalStatusAt)
			assert.Equal(t, testNow, *got.FinalStatusAt)
			assert.Equal(t, f.uk.ExecutorID, *got.ExecutorID)

			require.Len(t, f.notifier.got, 1)
			n := f.notifier.got[0]
			assert.Equal(t, notify.KindBlocked, n.Kind)
			assert.Equal(t, f.complaint.ComplaintID, n.ComplaintID)
			assert.Equal(t, tt.wantReason, n.Reason)
		})
	}
}

func TestHandleExecutorUpdate_DoneHintResolves(t *testing.T) {
	for _, resolved := range []models.ComplaintStatus{models.StatusModerated, models.StatusClosed} {
		t.Run(string(resolved), func(t *testing.T) {
			policy := config.DefaultLifecycle()
			policy.ResolvedStatus = resolved
			f := newFixture(t, policy)
			f.cls.result = classifier.Result{Decision: classifier.DecisionOK}
			executed := testNow.Add(-2 * time.Hour)
			text := "Фонарь заменён"

			got, err := f.svc.HandleExecutorUpdate(context.Background(), f.complaint.ComplaintID, ExecutorUpdate{
				ExecutorID:   f.uk.ExecutorID,
				ResponseText: &text,
				StatusHint:   strPtr(" DONE "),
				ExecutedAt:   &executed,
			})

			require.NoError(t, err)
			assert.Equal(t, resolved, got.Status)
			require.NotNil(t, got.Resolution)
			assert.Equal(t, text, *got.Resolution)
			require.NotNil(t, got.ExecutionDate)
			assert.Equal(t, executed, *got.ExecutionDate)
			require.NotNil(t, got.FinalStatusAt)
			assert.Empty(t, f.notifier.got)
		})
	}
}

func TestHandleExecutorUpdate_CompletedHintFollowsResolvedPolicy(t *testing.T) {
	tests := []struct {
		resolved models.ComplaintStatus
		hint     string
		want     models.ComplaintStatus
	}{
		{resolved: models.StatusModerated, hint: "completed", want: models.StatusModerated},
		{resolved: models.StatusClosed, hint: "Completed", want: models.StatusClosed},
		{resolved: models.StatusClosed, hint: "closed", want: models.StatusClosed},
		{resolved: models.StatusClosed, hint: "moderated", want: models.StatusInProgressResponsible},
	}

	for _, tt := range tests {
		t.Run(string(tt.resolved)+"/"+tt.hint, func(t *testing.T) {
			// Arrange
			policy := config.DefaultLifecycle()
			policy.ResolvedStatus = tt.resolved
			f := newFixture(t, policy)
			f.cls.result = classifier.Result{Decision: classifier.DecisionOK}
			text := "выполнено"

			// Act
			got, err := f.svc.HandleExecutorUpdate(context.Background(), f.complaint.ComplaintID, ExecutorUpdate{
				ExecutorID:   f.uk.ExecutorID,
				ResponseText: &text,
				StatusHint:   strPtr(tt.hint),
			})

			// Assert
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestHandleExecutorUpdate_OKWithoutHintStaysOpen(t *testing.T) {
	f := newFixture(t, config.DefaultLifecycle())
	f.cls.result = classifier.Result{Decision: classifier.DecisionOK}

	got, err := f.update(f.uk.ExecutorID, "")

	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgressResponsible, got.Status)
	require.NotNil(t, got.Resolution)
	assert.Equal(t, "", *got.Resolution)
	assert.Nil(t, got.ExecutionDate)
	assert.Nil(t, got.FinalStatusAt)
}

func TestHandleExecutorUpdate_ClassifierFailureLeavesNoTrace(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind classifier.ErrorKind
	}{
		{name: "timeout", err: &classifier.Error{Kind: classifier.KindTimeout, Err: context.DeadlineExceeded}, wantKind: classifier.KindTimeout},
		{name: "plain error is wrapped", err: errors.New("connection reset"), wantKind: classifier.KindTransport},
		{name: "bare deadline", err: context.DeadlineExceeded, wantKind: classifier.KindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.DefaultLifecycle())
			f.cls.err = tt.err

			got, err := f.update(f.uk.ExecutorID, "Заявка передана")

			assert.Nil(t, got)
			assert.ErrorIs(t, err, classifier.ErrClassification)
			var ce *classifier.Error
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.wantKind, ce.Kind)

			c := f.reload(t)
			assert.Equal(t, models.StatusNew, c.Status)
			h, err := f.store.GetOrCreateHistory(context.Background(), f.complaint.ComplaintID)
			require.NoError(t, err)
			assert.Empty(t, h.ExecutorIDs)
			statuses, err := f.store.ListStatuses(context.Background(), f.complaint.ComplaintID)
			require.NoError(t, err)
			assert.Len(t, statuses, 1)
			assert.Empty(t, f.notifier.got)
		})
	}
}

func TestHandleExecutorUpdate_ForwardBeatsBounce(t *testing.T) {
	f := newFixture(t, config.DefaultLifecycle())
	f.cls.result = classifier.Result{
		Decision:           classifier.DecisionForward,
		TargetExecutorName: strPtr("ДУК Приокского района"),
		IsBlockingBounce:   true,
	}

	got, err := f.update(f.uk.ExecutorID, "Обращайтесь в ДУК")

	require.NoError(t, err)
	assert.Equal(t, models.StatusRedirected, got.Status)
	assert.Nil(t, got.FinalStatusAt)
}

func TestHandleExecutorUpdate_UnresolvableTargetBlocks(t *testing.T) {
	for _, target := range []string{"Газпром межрегионгаз", "Старый подрядчик", "999"} {
		t.Run(target, func(t *testing.T) {
			f := newFixture(t, config.DefaultLifecycle())
			f.cls.result = classifier.Result{Decision: classifier.DecisionForward, TargetExecutorName: strPtr(target)}

			got, err := f.update(f.uk.ExecutorID, "Это к "+target)

			require.NoError(t, err)
			assert.Equal(t, models.StatusBlockWorkflow, got.Status)
			assert.Equal(t, f.uk.ExecutorID, *got.ExecutorID)
			require.NotNil(t, got.FinalStatusAt)
			require.Len(t, f.notifier.got, 1)
			assert.Equal(t, notify.KindBlocked, f.notifier.got[0].Kind)
			assert.Contains(t, f.notifier.got[0].Reason, target)
		})
	}
}

func TestHandleExecutorUpdate_NumericTargetResolvesByID(t *testing.T) {
	f := newFixture(t, config.DefaultLifecycle())
	f.cls.result = classifier.Result{Decision: classifier.DecisionForward, TargetExecutorName: strPtr("2")}

	got, err := f.update(f.uk.ExecutorID, "передано")

	require.NoError(t, err)
	assert.Equal(t, models.StatusRedirected, got.Status)
	assert.Equal(t, f.duk.ExecutorID, *got.ExecutorID)
}

func TestHandleExecutorUpdate_ForwardWithoutTargetBlocks(t *testing.T) {
	f := newFixture(t, config.DefaultLifecycle())
	f.cls.result = classifier.Result{Decision: classifier.DecisionForward}

	got, err := f.update(f.uk.ExecutorID, "не наша зона ответственности")

	require.NoError(t, err)
	assert.Equal(t, models.StatusBlockWorkflow, got.Status)
	require.Len(t, f.notifier.got, 1)
	assert.Equal(t, config.DefaultBounceReason, f.notifier.got[0].Reason)
}

func TestHandleExecutorUpdate_RoutingLoop(t *testing.T) {
	tests := []struct {
		policy     config.LoopPolicy
		wantStatus models.ComplaintStatus
		wantKind   notify.Kind
	}{
		{policy: config.LoopBlock, wantStatus: models.StatusBlockWorkflow, wantKind: notify.KindBlocked},
		{policy: config.LoopForward, wantStatus: models.StatusRedirected, wantKind: notify.KindRedirected},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			policy := config.DefaultLifecycle()
			policy.LoopPolicy = tt.policy
			f := newFixture(t, policy)

			f.cls.result = classifier.Result{Decision: classifier.DecisionForward, TargetExecutorName: strPtr(f.duk.Name)}
			_, err := f.update(f.uk.ExecutorID, "в ДУК")
			require.NoError(t, err)

			f.cls.result = classifier.Result{Decision: classifier.DecisionForward, TargetExecutorName: strPtr(f.uk.Name)}
			got, err := f.update(f.duk.ExecutorID, "обратно в УК")

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			require.Len(t, f.notifier.got, 2)
			assert.Equal(t, tt.wantKind, f.notifier.got[1].Kind)

			h, err := f.svc.GetHistory(context.Background(), f.complaint.ComplaintID)
			require.NoError(t, err)
			assert.Equal(t, []int64{f.uk.ExecutorID, f.duk.ExecutorID}, []int64(h.ExecutorIDs))
		})
	}
}

func TestHandleExecutorUpdate_RoutingLoopOnUnassignedComplaint(t *testing.T) {
	// Arrange
	ctx := context.Background()
	f := newFixture(t, config.DefaultLifecycle())
	unassigned, err := f.svc.CreateComplaint(ctx, NewComplaint{Description: "мусор во дворе"})
	require.NoError(t, err)
	f.complaint = unassigned

	f.cls.result = classifier.Result{Decision: classifier.DecisionForward, TargetExecutorName: strPtr(f.duk.Name)}
	first, err := f.update(f.uk.ExecutorID, "в ДУК")
	require.NoError(t, err)
	require.Equal(t, models.StatusRedirected, first.Status)

	// Act
	f.cls.result = classifier.Result{Decision: classifier.DecisionForward, TargetExecutorName: strPtr(f.uk.Name)}
	got, err := f.update(f.duk.ExecutorID, "обратно в УК")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, models.StatusBlockWorkflow, got.Status)
	assert.Equal(t, f.duk.ExecutorID, *got.ExecutorID)
	require.Len(t, f.notifier.got, 2)
	assert.Equal(t, notify.KindBlocked, f.notifier.got[1].Kind)
}

func TestHandleExecutorUpdate_ForwardToSelfIsALoop(t *testing.T) {
	f := newFixture(t, config.DefaultLifecycle())
	f.cls.result = classifier.Result{Decision: classifier.DecisionForward, TargetExecutorName: strPtr(f.uk.Name)}

	got, err := f.update(f.uk.ExecutorID, "передаём в Управляющую компанию")

	require.NoError(t, err)
	assert.Equal(t, models.StatusBlockWorkflow, got.Status)
}

func TestHandleExecutorUpdate_RepeatedResponseIsNotDuplicated(t *testing.T) {
	f := newFixture(t, config.DefaultLifecycle())
	f.cls.result = classifier.Result{Decision: classifier.DecisionOK}

	_, err := f.update(f.uk.ExecutorID, "в работе")
	require.NoError(t, err)
	_, err = f.update(f.uk.ExecutorID, "всё ещё в работе")
	require.NoError(t, err)

	h, err := f.svc.GetHistory(context.Background(), f.complaint.ComplaintID)
	require.NoError(t, err)
	assert.Equal(t, []int64{f.uk.ExecutorID}, []int64(h.ExecutorIDs))
	assert.Len(t, h.Responses, 1)
	assert.Equal(t, "всё ещё в работе", h.Responses[f.uk.ExecutorID].Response)

	statuses, err := f.svc.ListStatuses(context.Background(), f.complaint.ComplaintID)
	require.NoError(t, err)
	assert.Len(t, statuses, 3)
}

func TestHandleExecutorUpdate_TerminalComplaintRejected(t *testing.T) {
	f := newFixture(t, config.DefaultLifecycle())
	f.cls.result = classifier.Result{Decision: classifier.DecisionStop, IsBlockingBounce: true}
	blocked, err := f.update(f.uk.ExecutorID, "не к нам")
	require.NoError(t, err)
	finalAt := *blocked.FinalStatusAt

	f.svc.now = func() time.Time { return testNow.Add(time.Hour) }
	f.cls.result = classifier.Result{Decision: classifier.DecisionOK}
	_, err = f.update(f.uk.ExecutorID, "сделано")

	assert.ErrorIs(t, err, ErrTerminalStatus)
	assert.Equal(t, 1, f.cls.calls)
	c := f.reload(t)
	assert.Equal(t, models.StatusBlockWorkflow, c.Status)
	assert.Equal(t, finalAt, *c.FinalStatusAt)
}

func TestHandleExecutorUpdate_Validation(t *testing.T) {
	f := newFixture(t, config.DefaultLifecycle())
	text := "ok"

	tests := []struct {
		name  string
		upd   ExecutorUpdate
		field string
	}{
		{name: "missing response text", upd: ExecutorUpdate{ExecutorID: f.uk.ExecutorID}, field: "response_text"},
		{name: "zero executor", upd: ExecutorUpdate{ResponseText: &text}, field: "executor_id"},
		{name: "negative executor", upd: ExecutorUpdate{ExecutorID: -3, ResponseText: &text}, field: "executor_id"},
		{name: "oversized status hint", upd: ExecutorUpdate{
			ExecutorID: f.uk.ExecutorID, ResponseText: &text, StatusHint: strPtr(strings.Repeat("x", 65)),
		}, field: "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.HandleExecutorUpdate(context.Background(), f.complaint.ComplaintID, tt.upd)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Zero(t, f.cls.calls)
}

func TestExecutorUpdate_ValidateAcceptsEmptyResponse(t *testing.T) {
	empty := ""
	upd := ExecutorUpdate{ExecutorID: 7, ResponseText: &empty}

	err := upd.Validate()

	assert.NoError(t, err)
}

func TestHandleExecutorUpdate_UnknownComplaint(t *testing.T) {
	f := newFixture(t, config.DefaultLifecycle())
	text := "ok"

	_, err := f.svc.HandleExecutorUpdate(context.Background(), 404, ExecutorUpdate{ExecutorID: 1, ResponseText: &text})

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.cls.calls)
}

func TestHandleExecutorUpdate_ClassifierRequest(t *testing.T) {
	f := newFixture(t, config.DefaultLifecycle())
	f.cls.result = classifier.Result{Decision: classifier.DecisionOK}
	executed := testNow.Add(15 * 24 * time.Hour)
	text := "выполнено с опозданием"

	_, err := f.svc.HandleExecutorUpdate(context.Background(), f.complaint.ComplaintID, ExecutorUpdate{
		ExecutorID:   f.uk.ExecutorID,
		ResponseText: &text,
		ExecutedAt:   &executed,
	})

	require.NoError(t, err)
	req := f.cls.last
	assert.Equal(t, "broken streetlight", req.ComplaintDescription)
	assert.Equal(t, text, req.ExecutorResponse)
	assert.Equal(t, 15.0, req.Timing.RealDays)
	assert.Equal(t, 5.0, req.Timing.DelayDays)
	assert.True(t, req.Timing.Overdue())
}

func TestHandleExecutorUpdate_LogsOverdueResponse(t *testing.T) {
	tests := []struct {
		name     string
		executed time.Time
		wantLogs int
	}{
		{name: "late", executed: testNow.Add(12 * 24 * time.Hour), wantLogs: 1},
		{name: "within window", executed: testNow.Add(3 * 24 * time.Hour), wantLogs: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			f := newFixture(t, config.DefaultLifecycle())
			core, logs := observer.New(zap.InfoLevel)
			f.svc.Logger = zap.New(core)
			f.cls.result = classifier.Result{Decision: classifier.DecisionOK}
			text := "сделано"

			// Act
			_, err := f.svc.HandleExecutorUpdate(context.Background(), f.complaint.ComplaintID, ExecutorUpdate{
				ExecutorID:   f.uk.ExecutorID,
				ResponseText: &text,
				ExecutedAt:   &tt.executed,
			})

			// Assert
			require.NoError(t, err)
			overdue := logs.FilterMessage("executor response is overdue")
			require.Equal(t, tt.wantLogs, overdue.Len())
			if tt.wantLogs > 0 {
				assert.Equal(t, 2.0, overdue.All()[0].ContextMap()["delay_days"])
			}
		})
	}
}
