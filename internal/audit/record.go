// Package audit records a correlation trail for authenticated requests.
// A record opens when a request enters its handler stage and closes with
// the outcome; entity identifiers found in the request and the response
// link the record to the business objects it touched.
package audit

import "time"

// Result is the outcome recorded when a record closes.
type Result string

// Record outcomes.
const (
	ResultSuccess Result = "SUCCESS"
	ResultError   Result = "ERROR"
)

// Record is one audit entry with an open-then-close lifecycle.
type Record struct {
	// LogID is assigned at open time and keys the close update.
	LogID string `json:"logId"`

	// Request identity, captured at open time.
	IP             string `json:"ip"`
	InstallationID string `json:"installationId"`
	SessionID      string `json:"sessionId"`
	Phone          string `json:"phone,omitempty"`
	UserID         string `json:"userId,omitempty"`
	CounterpartyID string `json:"counterpartyId,omitempty"`

	// Category and Action classify the operation per route.
	Category string `json:"category"`
	Action   string `json:"action"`

	// EntityIDs are the correlated entity identifiers collected from
	// the request at open time and the response at close time.
	EntityIDs []string `json:"correlatedEntityIds,omitempty"`

	// Outcome, set at close time.
	Result Result `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`

	OpenedAt time.Time `json:"openedAt"`
	ClosedAt time.Time `json:"closedAt,omitempty"`
}
