package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq" // Необхідний для pq.Int64Array
)

// ExecutorResponse is what a single executor said about a complaint.
type ExecutorResponse struct {
	Response   string    `json:"response"`
	Status     *string   `json:"status,omitempty"`
	ExecutedAt time.Time `json:"executed_at"`
}

// ExecutorResponses maps executor id to its latest response. Stored as jsonb.
type ExecutorResponses map[int64]ExecutorResponse

// Value implements driver.Valuer.
func (r ExecutorResponses) Value() (driver.Value, error) {
	if r == nil {
		return "{}", nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (r *ExecutorResponses) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = ExecutorResponses{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ExecutorResponses", src)
	}
	out := ExecutorResponses{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode executor responses: %w", err)
	}
	*r = out
	return nil
}

// ComplaintHistory is the per-complaint ledger of executors that touched it.
// An executor id is in ExecutorIDs if and only if Responses has an entry for it.
type ComplaintHistory struct {
	ComplaintID int64 `gorm:"primaryKey;autoIncrement:false" json:"complaint_id"`
	// ExecutorIDs keeps first-touch order.
	ExecutorIDs pq.Int64Array     `gorm:"type:bigint[]" json:"executors_ids"`
	Responses   ExecutorResponses `gorm:"type:jsonb;not null" json:"responses"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func (ComplaintHistory) TableName() string { return "complaint_histories" }

// NewComplaintHistory returns an empty ledger for complaintID.
func NewComplaintHistory(complaintID int64) *ComplaintHistory {
	return &ComplaintHistory{
		ComplaintID: complaintID,
		ExecutorIDs: pq.Int64Array{},
		Responses:   ExecutorResponses{},
	}
}

// Record upserts the response of executorID. A repeated executor keeps its
// original position in ExecutorIDs and its entry is overwritten.
func (h *ComplaintHistory) Record(executorID int64, entry ExecutorResponse) {
	if h.Responses == nil {
		h.Responses = ExecutorResponses{}
	}
	if !h.HasExecutor(executorID) {
		h.ExecutorIDs = append(h.ExecutorIDs, executorID)
	}
	h.Responses[executorID] = entry
}

// HasExecutor reports whether executorID has touched the complaint.
func (h *ComplaintHistory) HasExecutor(executorID int64) bool {
	for _, id := range h.ExecutorIDs {
		if id == executorID {
			return true
		}
	}
	return false
}

// Response returns the latest response of executorID.
func (h *ComplaintHistory) Response(executorID int64) (ExecutorResponse, bool) {
	r, ok := h.Responses[executorID]
	return r, ok
}

// Clone returns a deep copy; used by callers that must not share the maps.
func (h *ComplaintHistory) Clone() *ComplaintHistory {
	out := &ComplaintHistory{
		ComplaintID: h.ComplaintID,
		ExecutorIDs: append(pq.Int64Array{}, h.ExecutorIDs...),
		Responses:   make(ExecutorResponses, len(h.Responses)),
		UpdatedAt:   h.UpdatedAt,
	}
	for k, v := range h.Responses {
		out.Responses[k] = v
	}
	return out
}
