package datasets

import (
	"fmt"
	"net/url"
	"time"

	"github.com/MomPansy/seasense-ingest/pkg/models"
)

// upstream timestamps are naive civil time in this layout
const TimeLayout = "2006-01-02 15:04:05"

const (
	VesselArrivals     = "vessel_arrivals"
	VesselDepartures   = "vessel_departures"
	VesselsDueToArrive = "vessels_due_to_arrive"
)

// Dataset describes one ingested feed: where to fetch it, which tables it
// lands in, and how a movement record maps onto the canonical row shape.
type Dataset struct {
	Name               string
	EndpointPath       string
	DefaultWindowHours int
	// TimeColumn is the defining timestamp column, also the third component
	// of the natural key.
	TimeColumn string
	// HasLocations marks datasets that carry from/to location fields and are
	// eligible for dictionary substitution.
	HasLocations bool
	// IncludeFetchedAt marks datasets whose permanent table keeps the fetch
	// timestamp alongside the movement fields.
	IncludeFetchedAt bool

	eventTime func(m models.VesselMovement) string
}

var registry = map[string]Dataset{
	VesselArrivals: {
		Name:               VesselArrivals,
		EndpointPath:       "/v1/vessel/arrivals",
		DefaultWindowHours: 24,
		TimeColumn:         "arrived_time",
		HasLocations:       true,
		eventTime:          func(m models.VesselMovement) string { return m.ArrivedTime },
	},
	VesselDepartures: {
		Name:               VesselDepartures,
		EndpointPath:       "/v1/vessel/departure",
		DefaultWindowHours: 24,
		TimeColumn:         "departed_time",
		HasLocations:       false,
		eventTime:          func(m models.VesselMovement) string { return m.DepartedTime },
	},
	VesselsDueToArrive: {
		Name:               VesselsDueToArrive,
		EndpointPath:       "/v1/vessel/duetoarrive",
		DefaultWindowHours: 73,
		TimeColumn:         "due_to_arrive_time",
		HasLocations:       true,
		IncludeFetchedAt:   true,
		eventTime:          func(m models.VesselMovement) string { return m.DueToArriveTime },
	},
}

// Get returns the dataset registered under name.
func Get(name string) (Dataset, bool) {
	d, ok := registry[name]
	return d, ok
}

// Names returns all registered dataset names.
func Names() []string {
	return []string{VesselArrivals, VesselDepartures, VesselsDueToArrive}
}

// EventTimeOf extracts the dataset's defining timestamp string from a
// movement record. Empty when the upstream omitted it.
func (d Dataset) EventTimeOf(m models.VesselMovement) string {
	return d.eventTime(m)
}

// FetchURL builds the upstream request URL for a window of hours anchored at
// now. The timestamp path segment is the upstream's naive civil-time layout.
func (d Dataset) FetchURL(baseURL string, now time.Time, hours int) string {
	return fmt.Sprintf("%s%s/date/%s/hours/%d",
		baseURL, d.EndpointPath, url.PathEscape(now.Format(TimeLayout)), hours)
}

// RawTable is the audit table capturing every fetch attempt.
func (d Dataset) RawTable() string {
	return "raw." + d.Name
}

// StagingTable is the per-run scratch table.
func (d Dataset) StagingTable() string {
	return "staging." + d.Name
}

// PermanentTable is the merge target.
func (d Dataset) PermanentTable() string {
	return "public." + d.Name
}

// NaturalKey returns the columns that identify a movement record.
func (d Dataset) NaturalKey() []string {
	return []string{"vessel_name", "imo", d.TimeColumn}
}

// StagingColumns returns the column list staged rows are written with.
func (d Dataset) StagingColumns() []string {
	cols := []string{"vessel_name", "callsign", "imo", "flag", d.TimeColumn}
	if d.HasLocations {
		cols = append(cols, "location_from", "location_to")
	}
	cols = append(cols, "fetched_at")
	return cols
}

// InsertColumns returns the column list merged into the permanent table.
func (d Dataset) InsertColumns() []string {
	cols := []string{"vessel_name", "callsign", "imo", "flag", d.TimeColumn}
	if d.HasLocations {
		cols = append(cols, "location_from", "location_to")
	}
	if d.IncludeFetchedAt {
		cols = append(cols, "fetched_at")
	}
	return cols
}
