package pipeline

import (
	"errors"
	"fmt"
)

// FetchError marks a run that failed before any data arrived. The raw audit
// row for the attempt is still committed.
type FetchError struct {
	Dataset    string
	StatusCode int
	Detail     string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch for %s failed (status %d): %s", e.Dataset, e.StatusCode, e.Detail)
}

// TransformError marks a failed transform pass; the run's writes all roll
// back, including the raw insert.
type TransformError struct {
	Dataset string
	Err     error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform for %s failed: %s", e.Dataset, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// MergeError marks a failed merge phase; the run's writes all roll back.
type MergeError struct {
	Dataset string
	Err     error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge for %s failed: %s", e.Dataset, e.Err)
}

func (e *MergeError) Unwrap() error {
	return e.Err
}

// ConfigError marks a run rejected before it started, e.g. an unknown
// dataset name.
type ConfigError struct {
	Dataset string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid run configuration for %s: %s", e.Dataset, e.Reason)
}

func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

func IsTransformError(err error) bool {
	var te *TransformError
	return errors.As(err, &te)
}

func IsMergeError(err error) bool {
	var me *MergeError
	return errors.As(err, &me)
}

func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
