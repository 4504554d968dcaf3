// Package mongostore builds and executes per-station upsert operations
// against a MongoDB-compatible document store.
package mongostore

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/netatmo-archive/ingest-service/internal/domain"
)

// stationKey is the persisted document's primary key shape.
type stationKey struct {
	StationID string `bson:"stationId"`
	Date      string `bson:"date"`
}

// UpsertReport summarizes the result of one UpsertStations call.
type UpsertReport struct {
	Upserted int
	Skipped  int
}

// Store performs bulk upserts into a single MongoDB collection.
type Store struct {
	collection *mongo.Collection
}

// Config configures a Store's underlying Mongo client.
type Config struct {
	URI          string
	Database     string
	Collection   string
	WriteConcern int
}

// New dials Mongo and returns a Store backed by cfg.Database.cfg.Collection.
// Per the teacher's adapter pattern, the adapter owns its client for the
// lifetime of the process; the driver's internal connection pool, not a
// fresh dial per chunk, backs each bulk-write call (see the per-chunk-
// connection design note).
func New(ctx context.Context, cfg Config) (*Store, error) {
	wc := writeconcern.New(writeconcern.WMajority())
	if cfg.WriteConcern > 0 {
		wc = writeconcern.New(writeconcern.W(cfg.WriteConcern))
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetWriteConcern(wc))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)
	return &Store{collection: coll}, nil
}

// Close disconnects the underlying Mongo client.
func (s *Store) Close(ctx context.Context) error {
	return s.collection.Database().Client().Disconnect(ctx)
}

// UpsertStations builds one upsert operation per station in chunk and
// submits them as a single unordered bulk write. A station lacking both a
// first thermo timestamp and a first hydro-hourly timestamp is skipped and
// counted, not submitted.
func (s *Store) UpsertStations(ctx context.Context, chunk map[string]*domain.Station) (UpsertReport, error) {
	var report UpsertReport
	models := make([]mongo.WriteModel, 0, len(chunk))

	for _, station := range chunk {
		date, ok := calendarDay(station)
		if !ok {
			report.Skipped++
			continue
		}

		key := stationKey{StationID: station.StationID, Date: date}
		filter := bson.M{"_id": key}
		update := buildUpdate(station)

		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(update).
			SetUpsert(true))
	}

	if len(models) == 0 {
		return report, nil
	}

	result, err := s.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return report, domain.NewError(domain.StoreWriteError, "mongostore.UpsertStations", err)
	}

	report.Upserted = int(result.UpsertedCount + result.ModifiedCount)
	return report, nil
}

// calendarDay derives the YYYYMMDD primary-key component from the first
// thermo timestamp, falling back to the first hydro-hourly timestamp.
func calendarDay(station *domain.Station) (string, bool) {
	if station.ThermoModule != nil && len(station.ThermoModule.ValidDatetime) > 0 {
		return station.ThermoModule.ValidDatetime[0].Format("20060102"), true
	}
	if station.HydroModule != nil && len(station.HydroModule.TimeHourRain) > 0 {
		return station.HydroModule.TimeHourRain[0].Format("20060102"), true
	}
	return "", false
}

// buildUpdate constructs the $setOnInsert / $push document for one station,
// mirroring the source's _construct_station_upsert_query exactly: absent
// modules get a null marker only on insert, present modules get a bulk
// array append that is never applied to a stored module the incoming
// station doesn't carry.
func buildUpdate(station *domain.Station) bson.M {
	setOnInsert := bson.M{
		"elevation": station.Elevation,
		"latitude":  station.Latitude,
		"longitude": station.Longitude,
	}
	if station.ThermoModule == nil {
		setOnInsert["thermoModule"] = nil
	}
	if station.HydroModule == nil {
		setOnInsert["hydroModule"] = nil
	}

	push := bson.M{}
	if m := station.ThermoModule; m != nil {
		push["thermoModule.validDatetime"] = bson.M{"$each": m.ValidDatetime}
		push["thermoModule.temperature"] = bson.M{"$each": m.Temperature}
		push["thermoModule.humidity"] = bson.M{"$each": m.Humidity}
		push["thermoModule.pressure"] = bson.M{"$each": m.Pressure}
	}
	if m := station.HydroModule; m != nil {
		push["hydroModule.timeDayRain"] = bson.M{"$each": m.TimeDayRain}
		push["hydroModule.timeHourRain"] = bson.M{"$each": m.TimeHourRain}
		push["hydroModule.dailyRainSum"] = bson.M{"$each": m.DailyRainSum}
		push["hydroModule.hourlyRainSum"] = bson.M{"$each": m.HourlyRainSum}
	}

	update := bson.M{"$setOnInsert": setOnInsert}
	if len(push) > 0 {
		update["$push"] = push
	}
	return update
}
