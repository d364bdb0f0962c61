package models

import "strings"

type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
	ClientStatusLost     ClientStatus = "lost"
	ClientStatusChurned  ClientStatus = "churned"
)

// ParseClientStatus coerces free-form spreadsheet input into the closed
// status enumeration. Unrecognized or empty values become active.
func ParseClientStatus(s string) ClientStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "inactive":
		return ClientStatusInactive
	case "lost":
		return ClientStatusLost
	case "churned", "churn":
		return ClientStatusChurned
	default:
		return ClientStatusActive
	}
}

func (s ClientStatus) IsValid() bool {
	switch s {
	case ClientStatusActive, ClientStatusInactive, ClientStatusLost, ClientStatusChurned:
		return true
	}
	return false
}

type ImportBatchStatus string

const (
	ImportBatchStatusCompleted ImportBatchStatus = "completed"
	ImportBatchStatusReversed  ImportBatchStatus = "reversed"
)
