package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	appcontext "github.com/MomPansy/seasense-ingest/pkg/context"
	"github.com/MomPansy/seasense-ingest/pkg/datasets"
	"github.com/MomPansy/seasense-ingest/pkg/locations"
	"github.com/MomPansy/seasense-ingest/pkg/models"
	"github.com/MomPansy/seasense-ingest/pkg/pipeline"
	"github.com/MomPansy/seasense-ingest/pkg/tracing"
)

var validate = validator.New()

// Runner executes the selected dataset pipelines.
type Runner interface {
	RunMany(ctx context.Context, selections []pipeline.Selection, dict locations.Dictionary) map[string]pipeline.RunResult
}

// DictionarySource fetches the location-code dictionary for a trigger.
type DictionarySource interface {
	FetchDictionary(ctx context.Context) (locations.Dictionary, error)
}

// Handler serves the ingestion trigger surface
type Handler struct {
	runner Runner
	dict   DictionarySource
	// windows overrides the registry's default fetch window per dataset;
	// entries <= 0 fall back to the registry default.
	windows map[string]int
	logger  ectologger.Logger
}

func NewHandler(runner Runner, dict DictionarySource, windows map[string]int, logger ectologger.Logger) *Handler {
	return &Handler{
		runner:  runner,
		dict:    dict,
		windows: windows,
		logger:  logger,
	}
}

// Register registers ingestion routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/trigger", h.Trigger)
}

// Trigger runs the selected dataset pipelines and reports per-dataset
// outcomes. An empty selection runs every dataset with its default window.
func (h *Handler) Trigger(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "ingestion_handler.Trigger")
	defer span.End()

	var req models.TriggerIngestionRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	selections, err := h.resolveSelections(req)
	if err != nil {
		var cfgErr *pipeline.ConfigError
		if errors.As(err, &cfgErr) {
			return httperror.NewHTTPError(http.StatusBadRequest, cfgErr.Reason)
		}
		return err
	}

	// Dictionary fetch failures reject the whole trigger before any run
	// touches the database.
	var dict locations.Dictionary
	if needsDictionary(selections) {
		dict, err = h.dict.FetchDictionary(ctx)
		if err != nil {
			return httperror.NewHTTPErrorf(http.StatusBadRequest, "location dictionary fetch failed: %v", err)
		}
	}

	// single-dataset triggers tag the request context so the request log
	// line carries the dataset
	if len(selections) == 1 {
		ctx = appcontext.SetDataset(ctx, selections[0].Dataset.Name)
		c.SetRequest(c.Request().WithContext(ctx))
	}

	results := h.runner.RunMany(ctx, selections, dict)

	resp := models.TriggerIngestionResponse{
		Triggered: make([]string, 0, len(selections)),
		Results:   make(map[string]models.DatasetOutcome, len(results)),
	}
	for _, sel := range selections {
		resp.Triggered = append(resp.Triggered, sel.Dataset.Name)

		result := results[sel.Dataset.Name]
		outcome := models.DatasetOutcome{
			Status:      "completed",
			WindowHours: result.WindowHours,
		}
		if result.Err != nil {
			outcome.Status = "failed"
			outcome.Error = result.Err.Error()
		} else {
			outcome.RowsStaged = result.RowsStaged
			outcome.RowsInserted = result.RowsInserted
		}
		resp.Results[sel.Dataset.Name] = outcome
	}

	return c.JSON(http.StatusOK, resp)
}

// resolveSelections maps requested dataset names onto registry entries.
// Unknown names reject the request with a ConfigError before any fetch
// happens. Window precedence: request override, configured default, registry
// default.
func (h *Handler) resolveSelections(req models.TriggerIngestionRequest) ([]pipeline.Selection, error) {
	names := req.Datasets
	if len(names) == 0 {
		names = datasets.Names()
	}

	var invalid []string
	selections := make([]pipeline.Selection, 0, len(names))
	for _, name := range names {
		d, ok := datasets.Get(name)
		if !ok {
			invalid = append(invalid, name)
			continue
		}

		hours := d.DefaultWindowHours
		if configured, ok := h.windows[name]; ok && configured > 0 {
			hours = configured
		}
		if override, ok := req.Hours[name]; ok {
			hours = override
		}
		selections = append(selections, pipeline.Selection{Dataset: d, WindowHours: hours})
	}

	if len(invalid) > 0 {
		return nil, &pipeline.ConfigError{
			Dataset: strings.Join(invalid, ", "),
			Reason:  fmt.Sprintf("Invalid dataset(s): %s", strings.Join(invalid, ", ")),
		}
	}
	return selections, nil
}

func needsDictionary(selections []pipeline.Selection) bool {
	for _, sel := range selections {
		if sel.Dataset.HasLocations {
			return true
		}
	}
	return false
}
