package domain

import (
	"fmt"
	"time"
)

// Region is an axis-aligned latitude/longitude bounding box, edges inclusive.
// A nil *Region means worldwide — no record is ever out of region.
type Region struct {
	TopLat    float64
	LeftLon   float64
	BottomLat float64
	RightLon  float64
}

// Contains reports whether (lat, lon) falls inside r, edges inclusive.
func (r *Region) Contains(lat, lon float64) bool {
	if r == nil {
		return true
	}
	return r.BottomLat <= lat && lat <= r.TopLat && r.LeftLon <= lon && lon <= r.RightLon
}

// DataRequest is the immutable descriptor of one ingestion run.
type DataRequest struct {
	Start  time.Time // UTC instant, inclusive
	End    time.Time // UTC instant, inclusive
	Step   time.Duration
	Region *Region // nil = worldwide
}

// Validate rejects a request before any work begins, per the InvalidRequest
// contract: a zero or negative step, or an end before start.
func (r DataRequest) Validate() error {
	if r.Step <= 0 {
		return NewError(InvalidRequest, "DataRequest.Validate", fmt.Errorf("step must be positive, got %s", r.Step))
	}
	if r.End.Before(r.Start) {
		return NewError(InvalidRequest, "DataRequest.Validate", fmt.Errorf("end %s is before start %s", r.End, r.Start))
	}
	return nil
}

// ArchiveKey is the object-store path of one archive: netatmo_YYYYMMDD_HHMM.json.gz.
type ArchiveKey string

// ThermoModule is a column-oriented bundle of four equal-length sequences.
// Missing scalar fields are recorded as NaN so the sequences stay aligned by
// index; see invariant 1.
type ThermoModule struct {
	ValidDatetime []time.Time
	Temperature   []float64
	Humidity      []float64
	Pressure      []float64
}

// HydroModule is a column-oriented bundle with the same equal-length
// discipline as ThermoModule.
type HydroModule struct {
	TimeDayRain   []time.Time
	TimeHourRain  []time.Time
	DailyRainSum  []float64
	HourlyRainSum []float64
}

// Station is the observed entity folded out of one or more archives.
//
// ThermoModule and HydroModule are nilable rather than zero-valued structs:
// absence of a module is a tri-state fact ("this station has never reported
// rain"), not an empty time series, and callers downstream (the Document
// Store Adapter) need to tell the two apart to decide between a null marker
// and a no-op on upsert.
type Station struct {
	StationID    string
	Latitude     float64
	Longitude    float64
	Elevation    *float64 // never set by the core; see design notes
	ThermoModule *ThermoModule
	HydroModule  *HydroModule
}

// ParseStats are per-archive counters emitted to the log sink.
type ParseStats struct {
	StationsInFile             int
	StationsOutOfRegion        int
	NewStations                int
	StationCount               int
	StationThermoContributions int
	StationHydroContributions  int
}

// RunSummary aggregates counters across an entire ingestion run. It is
// logged at the end of every run and, when configured, published as one
// event to the Kafka summary topic.
type RunSummary struct {
	Request          DataRequest
	FilesFetched     int
	FilesNotFound    int
	FilesFailed      int
	StationsUpserted int
	StationsSkipped  int
	ChunksWritten    int
	ErrorCount       int
	Duration         time.Duration
}
