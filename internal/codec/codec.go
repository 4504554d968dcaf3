// Package codec decodes gzip-compressed archive bytes into per-station
// observation series.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/netatmo-archive/ingest-service/internal/domain"
)

// rawRecord is the on-wire shape of one archive entry. Location is
// [lon, lat], not [lat, lon] — this matches the upstream API's GeoJSON-style
// ordering and is the single place that ordering is unswapped.
type rawRecord struct {
	Location []float64       `json:"location"`
	ID       string          `json:"_id"`
	Data     json.RawMessage `json:"data"`
}

type rawData struct {
	TimeUTC     *int64   `json:"time_utc"`
	Temperature *float64 `json:"Temperature"`
	Humidity    *float64 `json:"Humidity"`
	Pressure    *float64 `json:"Pressure"`

	TimeDayRain  *int64   `json:"time_day_rain"`
	TimeHourRain *int64   `json:"time_hour_rain"`
	Rain         *float64 `json:"Rain"`
	SumRain1     *float64 `json:"sum_rain_1"`
}

// DecodeAndParse gzip-decodes body, parses it as a sequence of archive
// records, and folds them into a per-station observation map filtered by
// region. A gzip or JSON decode failure on the archive itself is
// domain.DecodeError — the caller records it and moves on to the next
// archive, per the "a single bad file never stops the run" propagation
// policy; malformed individual records within an otherwise-valid archive
// are dropped silently and do not fail the archive.
func DecodeAndParse(body []byte, region *domain.Region) (map[string]*domain.Station, domain.ParseStats, error) {
	var stats domain.ParseStats

	gz, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, stats, domain.NewError(domain.DecodeError, "codec.DecodeAndParse", fmt.Errorf("gzip: %w", err))
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, stats, domain.NewError(domain.DecodeError, "codec.DecodeAndParse", fmt.Errorf("gzip read: %w", err))
	}

	var records []rawRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, stats, domain.NewError(domain.DecodeError, "codec.DecodeAndParse", fmt.Errorf("json: %w", err))
	}

	stations := make(map[string]*domain.Station)

	for _, rec := range records {
		if rec.ID == "" || len(rec.Location) != 2 || len(rec.Data) == 0 {
			continue
		}
		stats.StationsInFile++

		lon, lat := rec.Location[0], rec.Location[1]
		if !region.Contains(lat, lon) {
			stats.StationsOutOfRegion++
			continue
		}

		var data rawData
		if err := json.Unmarshal(rec.Data, &data); err != nil {
			continue
		}

		station, ok := stations[rec.ID]
		if !ok {
			station = &domain.Station{
				StationID: rec.ID,
				Latitude:  lat,
				Longitude: lon,
			}
			stations[rec.ID] = station
			stats.NewStations++
			stats.StationCount++
		}

		if appendThermo(station, data) {
			stats.StationThermoContributions++
		}
		if appendHydro(station, data) {
			stats.StationHydroContributions++
		}
	}

	return stations, stats, nil
}

// appendThermo appends one thermo observation to station if data carries
// time_utc and the timestamp differs from the series' current last entry.
// Reports whether an observation was appended.
func appendThermo(station *domain.Station, data rawData) bool {
	if data.TimeUTC == nil {
		return false
	}
	validDatetime := time.Unix(*data.TimeUTC, 0).UTC()

	if station.ThermoModule == nil {
		station.ThermoModule = &domain.ThermoModule{}
	}
	m := station.ThermoModule

	if n := len(m.ValidDatetime); n > 0 && m.ValidDatetime[n-1].Equal(validDatetime) {
		return false
	}

	m.ValidDatetime = append(m.ValidDatetime, validDatetime)
	m.Temperature = append(m.Temperature, orNaN(data.Temperature))
	m.Humidity = append(m.Humidity, orNaN(data.Humidity))
	m.Pressure = append(m.Pressure, orNaN(data.Pressure))
	return true
}

// appendHydro appends one hydro observation to station if data carries both
// time_day_rain and time_hour_rain. Unlike thermo, hydro has no duplicate
// suppression in the source; every record with both timestamps contributes.
func appendHydro(station *domain.Station, data rawData) bool {
	if data.TimeDayRain == nil || data.TimeHourRain == nil {
		return false
	}

	if station.HydroModule == nil {
		station.HydroModule = &domain.HydroModule{}
	}
	m := station.HydroModule

	m.TimeDayRain = append(m.TimeDayRain, time.Unix(*data.TimeDayRain, 0).UTC())
	m.TimeHourRain = append(m.TimeHourRain, time.Unix(*data.TimeHourRain, 0).UTC())
	m.DailyRainSum = append(m.DailyRainSum, orNaN(data.Rain))
	m.HourlyRainSum = append(m.HourlyRainSum, orNaN(data.SumRain1))
	return true
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
