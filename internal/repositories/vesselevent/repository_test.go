package vesselevent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MomPansy/seasense-ingest/pkg/datasets"
)

func normalize(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}

func TestBuildMergeSQL_Arrivals(t *testing.T) {
	d, ok := datasets.Get(datasets.VesselArrivals)
	require.True(t, ok)

	got := normalize(BuildMergeSQL(d))

	want := normalize(`
		INSERT INTO public.vessel_arrivals (vessel_name, callsign, imo, flag, arrived_time, location_from, location_to)
		SELECT vessel_name, callsign, imo, flag, arrived_time, location_from, location_to FROM (
			SELECT DISTINCT ON (vessel_name, imo, arrived_time) * FROM staging.vessel_arrivals
			WHERE arrived_time IS NOT NULL
			ORDER BY vessel_name, imo, arrived_time, id ASC
		) t2
		WHERE NOT EXISTS (
			SELECT 1
			FROM public.vessel_arrivals t1
			WHERE t1.vessel_name = t2.vessel_name AND t1.imo = t2.imo AND t1.arrived_time = t2.arrived_time
		)
		ORDER BY arrived_time ASC
	`)
	assert.Equal(t, want, got)
}

func TestBuildMergeSQL_PerDatasetShape(t *testing.T) {
	tests := []struct {
		dataset      string
		wantContains []string
		wantAbsent   []string
	}{
		{
			dataset: datasets.VesselDepartures,
			wantContains: []string{
				"INSERT INTO public.vessel_departures (vessel_name, callsign, imo, flag, departed_time)",
				"DISTINCT ON (vessel_name, imo, departed_time)",
				"WHERE departed_time IS NOT NULL",
				"ORDER BY departed_time ASC",
			},
			wantAbsent: []string{"location_from", "fetched_at"},
		},
		{
			dataset: datasets.VesselsDueToArrive,
			wantContains: []string{
				"INSERT INTO public.vessels_due_to_arrive (vessel_name, callsign, imo, flag, due_to_arrive_time, location_from, location_to, fetched_at)",
				"DISTINCT ON (vessel_name, imo, due_to_arrive_time)",
				"WHERE due_to_arrive_time IS NOT NULL",
				"ORDER BY vessel_name, imo, due_to_arrive_time, id ASC",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.dataset, func(t *testing.T) {
			d, ok := datasets.Get(tt.dataset)
			require.True(t, ok)

			got := normalize(BuildMergeSQL(d))
			for _, fragment := range tt.wantContains {
				assert.Contains(t, got, fragment)
			}
			for _, fragment := range tt.wantAbsent {
				assert.NotContains(t, got, fragment)
			}
		})
	}
}
