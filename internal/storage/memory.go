package storage

import (
	"complaintflow/backend/internal/models"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStorage keeps everything in process memory. A transaction writes
// straight into the shared state and keeps an undo journal of the keys it
// touched; rolling back replays that journal, so writes made concurrently
// by other callers survive. GetComplaintForUpdate inside a transaction
// holds a per-complaint lock until the transaction ends.
type MemoryStorage struct {
	memView
}

type memDB struct {
	mu       sync.Mutex
	st       memState
	now      func() time.Time
	rowLocks map[int64]*sync.Mutex
}

type memState struct {
	complaints map[int64]models.Complaint
	executors  map[int64]models.Executor
	moderators map[int64]models.Moderator
	histories  map[int64]*models.ComplaintHistory
	statuses   map[int64][]models.StatusEntry

	nextComplaint, nextExecutor, nextModerator int64
	nextStatus                                 uint
}

// memTx belongs to the goroutine running the transaction body. Its
// journal is appended while db.mu is held.
type memTx struct {
	undo []func(st *memState)
	held map[int64]*sync.Mutex
	// order of acquisition, released in reverse
	heldOrder []int64
}

// memView is the Storage implementation; tx is nil outside a transaction.
type memView struct {
	db *memDB
	tx *memTx
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{memView{db: &memDB{
		st: memState{
			complaints: map[int64]models.Complaint{},
			executors:  map[int64]models.Executor{},
			moderators: map[int64]models.Moderator{},
			histories:  map[int64]*models.ComplaintHistory{},
			statuses:   map[int64][]models.StatusEntry{},
		},
		now:      time.Now,
		rowLocks: map[int64]*sync.Mutex{},
	}}}
}

// record must be called with db.mu held.
func (v memView) record(undo func(st *memState)) {
	if v.tx != nil {
		v.tx.undo = append(v.tx.undo, undo)
	}
}

func (v memView) Transaction(_ context.Context, fn func(tx Storage) error) error {
	if v.tx != nil {
		return fn(v)
	}

	tx := &memTx{held: map[int64]*sync.Mutex{}}
	defer v.db.release(tx)

	if err := fn(memView{db: v.db, tx: tx}); err != nil {
		v.db.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i](&v.db.st)
		}
		v.db.mu.Unlock()
		return err
	}
	return nil
}

func (db *memDB) lockRow(tx *memTx, id int64) {
	if _, ok := tx.held[id]; ok {
		return
	}
	db.mu.Lock()
	l, ok := db.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		db.rowLocks[id] = l
	}
	db.mu.Unlock()

	l.Lock()
	tx.held[id] = l
	tx.heldOrder = append(tx.heldOrder, id)
}

func (db *memDB) release(tx *memTx) {
	for i := len(tx.heldOrder) - 1; i >= 0; i-- {
		tx.held[tx.heldOrder[i]].Unlock()
	}
}

// --- complaints ---

func (v memView) CreateComplaint(_ context.Context, c *models.Complaint) error {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	st := &v.db.st
	st.nextComplaint++
	c.ComplaintID = st.nextComplaint
	if c.Status == "" {
		c.Status = models.StatusNew
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = v.db.now()
	}
	st.complaints[c.ComplaintID] = *c

	id := c.ComplaintID
	v.record(func(st *memState) { delete(st.complaints, id) })
	return nil
}

func (v memView) GetComplaint(_ context.Context, id int64) (*models.Complaint, error) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	c, ok := v.db.st.complaints[id]
	if !ok {
		return nil, fmt.Errorf("complaint %d: %w", id, ErrNotFound)
	}
	return &c, nil
}

func (v memView) GetComplaintForUpdate(ctx context.Context, id int64) (*models.Complaint, error) {
	if v.tx != nil {
		v.db.lockRow(v.tx, id)
	}
	return v.GetComplaint(ctx, id)
}

func (v memView) ListComplaints(_ context.Context, limit, offset int) ([]models.Complaint, error) {
	v.db.mu.Lock()
	all := make([]models.Complaint, 0, len(v.db.st.complaints))
	for _, c := range v.db.st.complaints {
		all = append(all, c)
	}
	v.db.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ComplaintID > all[j].ComplaintID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return []models.Complaint{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (v memView) UpdateComplaint(_ context.Context, c *models.Complaint) error {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	prev, ok := v.db.st.complaints[c.ComplaintID]
	if !ok {
		return fmt.Errorf("complaint %d: %w", c.ComplaintID, ErrNotFound)
	}
	v.db.st.complaints[c.ComplaintID] = *c
	v.record(func(st *memState) { st.complaints[prev.ComplaintID] = prev })
	return nil
}

func (v memView) DeleteComplaint(_ context.Context, id int64) error {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	st := &v.db.st
	prev, ok := st.complaints[id]
	if !ok {
		return fmt.Errorf("complaint %d: %w", id, ErrNotFound)
	}
	hist, hadHist := st.histories[id]
	statuses, hadStatuses := st.statuses[id]

	delete(st.complaints, id)
	delete(st.histories, id)
	delete(st.statuses, id)

	v.record(func(st *memState) {
		st.complaints[id] = prev
		if hadHist {
			st.histories[id] = hist
		}
		if hadStatuses {
			st.statuses[id] = statuses
		}
	})
	return nil
}

// --- executors ---

func (v memView) CreateExecutor(_ context.Context, e *models.Executor) error {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	v.db.st.nextExecutor++
	e.ExecutorID = v.db.st.nextExecutor
	v.db.st.executors[e.ExecutorID] = *e

	id := e.ExecutorID
	v.record(func(st *memState) { delete(st.executors, id) })
	return nil
}

func (v memView) GetExecutor(_ context.Context, id int64) (*models.Executor, error) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	e, ok := v.db.st.executors[id]
	if !ok {
		return nil, fmt.Errorf("executor %d: %w", id, ErrNotFound)
	}
	return &e, nil
}

func (v memView) FindExecutorByName(_ context.Context, name string) (*models.Executor, error) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	want := strings.ToLower(strings.TrimSpace(name))
	var found *models.Executor
	for _, e := range v.db.st.executors {
		if strings.ToLower(strings.TrimSpace(e.Name)) != want {
			continue
		}
		if found == nil || e.ExecutorID < found.ExecutorID {
			e := e
			found = &e
		}
	}
	if found == nil {
		return nil, fmt.Errorf("executor %q: %w", name, ErrNotFound)
	}
	return found, nil
}

func (v memView) UpdateExecutor(_ context.Context, e *models.Executor) error {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	prev, ok := v.db.st.executors[e.ExecutorID]
	if !ok {
		return fmt.Errorf("executor %d: %w", e.ExecutorID, ErrNotFound)
	}
	v.db.st.executors[e.ExecutorID] = *e
	v.record(func(st *memState) { st.executors[prev.ExecutorID] = prev })
	return nil
}

func (v memView) DeleteExecutor(_ context.Context, id int64) error {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	prev, ok := v.db.st.executors[id]
	if !ok {
		return fmt.Errorf("executor %d: %w", id, ErrNotFound)
	}
	delete(v.db.st.executors, id)
	v.record(func(st *memState) { st.executors[id] = prev })
	return nil
}

// --- moderators ---

func (v memView) CreateModerator(_ context.Context, mod *models.Moderator) error {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	for _, existing := range v.db.st.moderators {
		if existing.Username == mod.Username {
			return fmt.Errorf("moderator %q: %w", mod.Username, ErrDuplicate)
		}
	}
	v.db.st.nextModerator++
	mod.ModeratorID = v.db.st.nextModerator
	v.db.st.moderators[mod.ModeratorID] = *mod

	id := mod.ModeratorID
	v.record(func(st *memState) { delete(st.moderators, id) })
	return nil
}

func (v memView) GetModerator(_ context.Context, id int64) (*models.Moderator, error) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	mod, ok := v.db.st.moderators[id]
	if !ok {
		return nil, fmt.Errorf("moderator %d: %w", id, ErrNotFound)
	}
	return &mod, nil
}

func (v memView) FindModeratorByUsername(_ context.Context, username string) (*models.Moderator, error) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	for _, mod := range v.db.st.moderators {
		if mod.Username == username {
			return &mod, nil
		}
	}
	return nil, fmt.Errorf("moderator %q: %w", username, ErrNotFound)
}

func (v memView) DeleteModerator(_ context.Context, id int64) error {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	prev, ok := v.db.st.moderators[id]
	if !ok {
		return fmt.Errorf("moderator %d: %w", id, ErrNotFound)
	}
	delete(v.db.st.moderators, id)
	v.record(func(st *memState) { st.moderators[id] = prev })
	return nil
}

// --- ledgers ---
//
// Stored history pointers are never mutated in place, so the journal can
// hold them directly.

func (v memView) GetOrCreateHistory(_ context.Context, complaintID int64) (*models.ComplaintHistory, error) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	h, ok := v.db.st.histories[complaintID]
	if !ok {
		h = models.NewComplaintHistory(complaintID)
		h.UpdatedAt = v.db.now()
		v.db.st.histories[complaintID] = h
		v.record(func(st *memState) { delete(st.histories, complaintID) })
	}
	return h.Clone(), nil
}

func (v memView) SaveHistory(_ context.Context, h *models.ComplaintHistory) error {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	id := h.ComplaintID
	prev, existed := v.db.st.histories[id]

	stored := h.Clone()
	stored.UpdatedAt = v.db.now()
	v.db.st.histories[id] = stored

	v.record(func(st *memState) {
		if existed {
			st.histories[id] = prev
			return
		}
		delete(st.histories, id)
	})
	return nil
}

func (v memView) AppendStatus(_ context.Context, e *models.StatusEntry) error {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	v.db.st.nextStatus++
	e.ID = v.db.st.nextStatus
	if e.CreatedAt.IsZero() {
		e.CreatedAt = v.db.now()
	}
	v.db.st.statuses[e.ComplaintID] = append(v.db.st.statuses[e.ComplaintID], *e)

	cid, id := e.ComplaintID, e.ID
	v.record(func(st *memState) {
		kept := st.statuses[cid][:0:0]
		for _, s := range st.statuses[cid] {
			if s.ID != id {
				kept = append(kept, s)
			}
		}
		st.statuses[cid] = kept
	})
	return nil
}

func (v memView) ListStatuses(_ context.Context, complaintID int64) ([]models.StatusEntry, error) {
	v.db.mu.Lock()
	defer v.db.mu.Unlock()
	out := append([]models.StatusEntry{}, v.db.st.statuses[complaintID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}
