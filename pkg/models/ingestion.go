package models

// TriggerIngestionRequest asks the service to run one or more dataset
// pipelines. An empty dataset list selects every registered dataset. Hours
// overrides the default fetch window per dataset.
type TriggerIngestionRequest struct {
	Datasets []string       `json:"datasets,omitempty" validate:"omitempty,dive,required"`
	Hours    map[string]int `json:"hours,omitempty" validate:"omitempty,dive,gt=0"`
}

// DatasetOutcome is the per-dataset result reported back to the caller.
type DatasetOutcome struct {
	Status       string `json:"status"` // "completed" or "failed"
	WindowHours  int    `json:"window_hours"`
	RowsStaged   int    `json:"rows_staged,omitempty"`
	RowsInserted int64  `json:"rows_inserted,omitempty"`
	Error        string `json:"error,omitempty"`
}

// TriggerIngestionResponse aggregates the outcomes of one trigger call.
type TriggerIngestionResponse struct {
	Triggered []string                  `json:"triggered"`
	Results   map[string]DatasetOutcome `json:"results"`
}
