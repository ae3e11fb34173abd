package routine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mapdomain "github.com/UrbanPV-25-26J-442/pv-workflow-backend/internal/mapping/domain"
)

const hourlyFixture = `{
  "outputs": {
    "hourly": [
      {"time": "20200101:0010", "P": 0.0},
      {"time": "20200101:0110", "P": 5000.0},
      {"time": "20200101:0210", "P": 10000.0}
    ]
  }
}`

func pvgisConfig() Config {
	return Config{ProjectID: "proj", Routine: "pvgis", Lat: 45.07, Lon: 7.68}
}

func TestPVGIS_Analyze(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(hourlyFixture))
	}))
	defer srv.Close()

	fn := NewPVGISClient(srv.URL, 1000).Builder()(pvgisConfig())

	payload, err := fn(context.Background(), mapdomain.Record{
		"id":   "b-1",
		"roof": 250.0,
		"gfa":  400.0,
	})
	require.NoError(t, err)

	// roof area wins over gfa: 250 m2 * 0.4 * 200 W/m2 = 20 kWp
	assert.Equal(t, "45.070000", gotQuery["lat"])
	assert.Equal(t, "7.680000", gotQuery["lon"])
	assert.Equal(t, "20.00", gotQuery["peakpower"])
	assert.Equal(t, "35", gotQuery["angle"])
	assert.Equal(t, "json", gotQuery["outputformat"])
	assert.Equal(t, "2020", gotQuery["startyear"])

	var res struct {
		BuildingID   string        `json:"building_id"`
		PeakPowerKWp float64       `json:"peakpower_kwp"`
		AreaM2       float64       `json:"area_m2"`
		Metrics      AnnualMetrics `json:"annual_metrics"`
	}
	require.NoError(t, json.Unmarshal(payload, &res))

	assert.Equal(t, "b-1", res.BuildingID)
	assert.InDelta(t, 20.0, res.PeakPowerKWp, 1e-9)
	assert.InDelta(t, 250.0, res.AreaM2, 1e-9)
	assert.Equal(t, 3, res.Metrics.NumHours)
	assert.InDelta(t, 15.0, res.Metrics.EnergyKWh, 1e-9)
	assert.InDelta(t, 5000.0, res.Metrics.AvgPowerW, 1e-9)
	assert.InDelta(t, 10000.0, res.Metrics.MaxPowerW, 1e-9)
	assert.InDelta(t, 0.0, res.Metrics.MinPowerW, 1e-9)
	assert.InDelta(t, 0.75, res.Metrics.SpecificYieldKWhKW, 1e-9)
	assert.InDelta(t, 0.0001, res.Metrics.CapacityFactor, 1e-9)
}

func TestPVGIS_FallsBackToGFA(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// gfa 100 m2 -> 100 * 0.4 * 200 / 1000 = 8 kWp
		assert.Equal(t, "8.00", r.URL.Query().Get("peakpower"))
		w.Write([]byte(hourlyFixture))
	}))
	defer srv.Close()

	fn := NewPVGISClient(srv.URL, 1000).Builder()(pvgisConfig())
	_, err := fn(context.Background(), mapdomain.Record{"id": "b-1", "roof": 0.0, "gfa": 100.0})
	require.NoError(t, err)
}

func TestPVGIS_StructuralFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(hourlyFixture))
	}))
	defer srv.Close()

	t.Run("location not set", func(t *testing.T) {
		fn := NewPVGISClient(srv.URL, 1000).Builder()(Config{ProjectID: "proj", Routine: "pvgis"})
		_, err := fn(context.Background(), mapdomain.Record{"id": "b-1", "gfa": 100.0})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "location")
	})

	t.Run("no usable area", func(t *testing.T) {
		fn := NewPVGISClient(srv.URL, 1000).Builder()(pvgisConfig())
		_, err := fn(context.Background(), mapdomain.Record{"id": "b-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "area")
	})
}

func TestPVGIS_NegativePowerSeries(t *testing.T) {
	// night-time hours can report negative P (inverter standby draw); the
	// extremes must reflect the actual series, not a zero baseline
	fixture := `{
  "outputs": {
    "hourly": [
      {"time": "20200101:0010", "P": -25.0},
      {"time": "20200101:0110", "P": -75.0}
    ]
  }
}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fixture))
	}))
	defer srv.Close()

	fn := NewPVGISClient(srv.URL, 1000).Builder()(pvgisConfig())
	payload, err := fn(context.Background(), mapdomain.Record{"id": "b-1", "gfa": 100.0})
	require.NoError(t, err)

	var res struct {
		Metrics AnnualMetrics `json:"annual_metrics"`
	}
	require.NoError(t, json.Unmarshal(payload, &res))
	assert.InDelta(t, -25.0, res.Metrics.MaxPowerW, 1e-9)
	assert.InDelta(t, -75.0, res.Metrics.MinPowerW, 1e-9)
	assert.InDelta(t, -50.0, res.Metrics.AvgPowerW, 1e-9)
	assert.InDelta(t, -0.1, res.Metrics.EnergyKWh, 1e-9)
	assert.Equal(t, 2, res.Metrics.NumHours)
}

func TestRounding(t *testing.T) {
	// negative values round away from zero, not toward it
	assert.InDelta(t, -1.24, round2(-1.238), 1e-9)
	assert.InDelta(t, 1.24, round2(1.238), 1e-9)
	assert.InDelta(t, -0.1235, round4(-0.12348), 1e-9)
	assert.InDelta(t, 0.0, round2(0.0), 1e-9)
}

func TestPVGIS_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Location over the sea"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	fn := NewPVGISClient(srv.URL, 1000).Builder()(pvgisConfig())
	_, err := fn(context.Background(), mapdomain.Record{"id": "b-1", "gfa": 100.0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
