package models

import (
	"encoding/json"
	"time"
)

// RawRecord is one fetch attempt captured verbatim in the raw schema. Rows are
// immutable after insert except for the processed flag, which flips false→true
// exactly once when a transform pass consumes the row.
type RawRecord struct {
	ID          int64           `json:"id" db:"id"`
	Endpoint    string          `json:"endpoint" db:"endpoint"`
	FetchedAt   time.Time       `json:"fetched_at" db:"fetched_at"`
	StatusCode  int             `json:"status_code" db:"status_code"`
	Payload     json.RawMessage `json:"payload,omitempty" db:"payload"`
	ErrorDetail *string         `json:"error_detail,omitempty" db:"error_detail"`
	Processed   bool            `json:"processed" db:"processed"`
}

// IsSuccess reports whether the upstream call produced a usable payload.
func (r *RawRecord) IsSuccess() bool {
	return r.StatusCode == 200
}
