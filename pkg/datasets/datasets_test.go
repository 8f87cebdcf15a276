package datasets

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MomPansy/seasense-ingest/pkg/models"
)

func TestGet(t *testing.T) {
	tests := []struct {
		name         string
		dataset      string
		wantOK       bool
		wantTimeCol  string
		wantWindow   int
		hasLocations bool
	}{
		{
			name:         "arrivals",
			dataset:      VesselArrivals,
			wantOK:       true,
			wantTimeCol:  "arrived_time",
			wantWindow:   24,
			hasLocations: true,
		},
		{
			name:        "departures",
			dataset:     VesselDepartures,
			wantOK:      true,
			wantTimeCol: "departed_time",
			wantWindow:  24,
		},
		{
			name:         "due to arrive",
			dataset:      VesselsDueToArrive,
			wantOK:       true,
			wantTimeCol:  "due_to_arrive_time",
			wantWindow:   73,
			hasLocations: true,
		},
		{
			name:    "unknown dataset",
			dataset: "vessel_sightings",
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := Get(tt.dataset)
			require.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.dataset, d.Name)
			assert.Equal(t, tt.wantTimeCol, d.TimeColumn)
			assert.Equal(t, tt.wantWindow, d.DefaultWindowHours)
			assert.Equal(t, tt.hasLocations, d.HasLocations)
		})
	}
}

func TestFetchURL(t *testing.T) {
	d, ok := Get(VesselArrivals)
	require.True(t, ok)

	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	got := d.FetchURL("https://upstream.example.com", now, 24)

	assert.Equal(t, "https://upstream.example.com/v1/vessel/arrivals/date/2025-03-14%2009:26:53/hours/24", got)
}

func TestEventTimeOf(t *testing.T) {
	m := models.VesselMovement{
		ArrivedTime:     "2025-03-14 09:00:00",
		DepartedTime:    "2025-03-14 10:00:00",
		DueToArriveTime: "2025-03-14 11:00:00",
	}

	tests := []struct {
		dataset string
		want    string
	}{
		{VesselArrivals, "2025-03-14 09:00:00"},
		{VesselDepartures, "2025-03-14 10:00:00"},
		{VesselsDueToArrive, "2025-03-14 11:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.dataset, func(t *testing.T) {
			d, ok := Get(tt.dataset)
			require.True(t, ok)
			assert.Equal(t, tt.want, d.EventTimeOf(m))
		})
	}
}

func TestColumns(t *testing.T) {
	arrivals, _ := Get(VesselArrivals)
	assert.Equal(t,
		[]string{"vessel_name", "callsign", "imo", "flag", "arrived_time", "location_from", "location_to", "fetched_at"},
		arrivals.StagingColumns())
	assert.Equal(t,
		[]string{"vessel_name", "callsign", "imo", "flag", "arrived_time", "location_from", "location_to"},
		arrivals.InsertColumns())

	departures, _ := Get(VesselDepartures)
	assert.Equal(t,
		[]string{"vessel_name", "callsign", "imo", "flag", "departed_time"},
		departures.InsertColumns())

	due, _ := Get(VesselsDueToArrive)
	assert.Equal(t,
		[]string{"vessel_name", "callsign", "imo", "flag", "due_to_arrive_time", "location_from", "location_to", "fetched_at"},
		due.InsertColumns())
	assert.Equal(t, []string{"vessel_name", "imo", "due_to_arrive_time"}, due.NaturalKey())
}
