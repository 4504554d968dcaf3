// Package domain models crowdsourced Netatmo weather-station observations.
//
// # Data Source
//
// Archives are gzip-compressed JSON snapshots published to object storage on
// a fixed cadence, one file per five-minute tick: netatmo_YYYYMMDD_HHMM.json.gz.
// Each archive is a point-in-time dump of every station the upstream collector
// currently knows about, not a delta — a station present in consecutive
// archives contributes one observation per archive it appears in.
//
// # Station Identity
//
// A station is identified by its MAC-address-derived ID as assigned by the
// upstream API. Coordinates (Lat, Lon) and Elevation are republished with
// every archive a station appears in; this package treats the first value
// seen for a given calendar day as authoritative and never reconciles
// conflicting republications within the same day.
//
// # Module Shape
//
// A physical station may report through a thermometer/hygrometer module
// (ThermoModule: temperature, humidity, pressure) or a rain gauge (HydroModule:
// hourly and daily accumulation), or both. Go has no native optional-field
// idiom, so absence is modeled as a nil pointer on [Station] rather than an
// empty-vs-populated slice: a station with no rain gauge has HydroModule ==
// nil, not a HydroModule with empty slices. This mirrors an Option type more
// closely than a zero-value struct would, and lets the codec package's fold
// functions (appendThermo, appendHydro) build the right shape without a
// second existence check downstream.
//
// # Region Filter
//
// A [Region] is a latitude/longitude bounding box (top-left, bottom-right
// corners). Stations outside it are dropped during parsing and counted, not
// logged individually — region filtering is expected to discard the large
// majority of any global archive when the target is a city or country.
//
// # Duplicate Suppression
//
// Within a single archive a station may appear more than once (the upstream
// API has been observed to do this during republication windows). A thermo
// reading is appended to ThermoModule only if its timestamp differs from the
// series' current last timestamp; this makes folding a single archive's
// thermo readings idempotent without having to deduplicate the whole archive
// up front. Hydro readings have no such check: every record carrying both
// rain timestamps is appended to HydroModule.
package domain
