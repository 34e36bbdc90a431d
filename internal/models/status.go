package models

import "strings"

// ComplaintStatus is the lifecycle state of a complaint.
type ComplaintStatus string

const (
	StatusNew                   ComplaintStatus = "new"
	StatusAssignedResponsible   ComplaintStatus = "assigned_responsible"
	StatusInProgressResponsible ComplaintStatus = "in_progress_responsible"
	StatusModerated             ComplaintStatus = "moderated"
	StatusClosed                ComplaintStatus = "closed"
	StatusBlockWorkflow         ComplaintStatus = "block_workflow"
	StatusRedirected            ComplaintStatus = "redirected"
)

// statusAliases maps legacy names onto the canonical vocabulary. The
// "completed" alias depends on the lifecycle policy and lives in config.
var statusAliases = map[string]ComplaintStatus{
	"blocked":     StatusBlockWorkflow,
	"in_progress": StatusInProgressResponsible,
}

// IsTerminal reports whether no further executor updates are accepted.
func (s ComplaintStatus) IsTerminal() bool {
	switch s {
	case StatusBlockWorkflow, StatusClosed, StatusModerated:
		return true
	}
	return false
}

// Valid reports whether s belongs to the canonical status set.
func (s ComplaintStatus) Valid() bool {
	switch s {
	case StatusNew, StatusAssignedResponsible, StatusInProgressResponsible,
		StatusModerated, StatusClosed, StatusBlockWorkflow, StatusRedirected:
		return true
	}
	return false
}

// ParseStatus normalises raw (case, surrounding spaces, aliases) into a canonical status.
func ParseStatus(raw string) (ComplaintStatus, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if alias, ok := statusAliases[key]; ok {
		return alias, true
	}
	s := ComplaintStatus(key)
	return s, s.Valid()
}
