// Command ingest runs one archive-download-and-upsert pass over a window of
// Netatmo archives, wiring together the object-store client, the archive
// codec, the Mongo adapter, and the pipeline orchestrator.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/netatmo-archive/ingest-service/internal/codec"
	"github.com/netatmo-archive/ingest-service/internal/config"
	"github.com/netatmo-archive/ingest-service/internal/credentials"
	"github.com/netatmo-archive/ingest-service/internal/domain"
	"github.com/netatmo-archive/ingest-service/internal/eventpublisher/kafka"
	"github.com/netatmo-archive/ingest-service/internal/objectstore"
	"github.com/netatmo-archive/ingest-service/internal/observability"
	"github.com/netatmo-archive/ingest-service/internal/pipeline"
	"github.com/netatmo-archive/ingest-service/internal/store/mongostore"
)

func main() {
	var (
		startFlag  = flag.String("start", "", "window start, RFC3339 (required)")
		endFlag    = flag.String("end", "", "window end, RFC3339 (required)")
		stepFlag   = flag.Duration("step", 5*time.Minute, "spacing between archive instants")
		regionFlag = flag.String("region", "", "optional bounding box: topLat,leftLon,bottomLat,rightLon")
		credsFlag  = flag.String("credentials-file", "", "path to the aws_s3_path/aws_access_key/aws_secret_key file (required)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics, _ := observability.NewMetrics()

	req, err := buildRequest(*startFlag, *endFlag, *stepFlag, *regionFlag)
	if err != nil {
		logger.Error("invalid request flags", "error", err)
		os.Exit(1)
	}
	if *credsFlag == "" {
		logger.Error("-credentials-file is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	creds := credentials.FileProvider{Path: *credsFlag}
	storeClient := objectstore.New(objectstore.Config{
		Bucket:   cfg.S3Bucket,
		Region:   cfg.S3Region,
		Endpoint: cfg.S3Endpoint,
	}, creds, logger)

	docStore, err := mongostore.New(ctx, mongostore.Config{
		URI:          cfg.MongoURI,
		Database:     cfg.MongoDatabase,
		Collection:   cfg.MongoCollection,
		WriteConcern: cfg.MongoWriteConcern,
	})
	if err != nil {
		logger.Error("failed to connect to document store", "error", err)
		os.Exit(1)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := docStore.Close(closeCtx); err != nil {
			logger.Error("document store close error", "error", err)
		}
	}()

	var publisher *kafka.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = kafka.NewPublisher(kafka.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaSummaryTopic}, logger)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
	}

	p := pipeline.New(storeClient, codecDecoder{}, upsertAdapter{store: docStore}, logger, metrics, pipeline.Params{
		FileWorkers:      cfg.FileWorkers,
		JSONWorkers:      cfg.JSONWorkers,
		StoreConcurrency: cfg.StoreConcurrency,
		DBConcurrency:    cfg.DBConcurrency,
		MinChunkSize:     cfg.MinChunkSize,
	})

	summary, runErrs, runErr := p.Run(ctx, req)
	for _, e := range runErrs {
		logger.Warn("ingestion error", "error", e)
	}

	if publisher != nil {
		publishCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if err := publisher.Publish(publishCtx, summary); err != nil {
			logger.Error("failed to publish run summary", "error", err)
		}
		cancel()
	}

	if runErr != nil {
		logger.Error("ingestion run aborted", "error", runErr)
		os.Exit(1)
	}

	var fatalObserved bool
	for _, e := range runErrs {
		if domain.Is(e, domain.Fatal) {
			fatalObserved = true
			break
		}
	}
	if fatalObserved {
		os.Exit(1)
	}
}

// buildRequest parses the CLI flags into a domain.DataRequest, validating
// the RFC3339 instants and the optional comma-separated bounding box.
func buildRequest(start, end string, step time.Duration, region string) (domain.DataRequest, error) {
	if start == "" || end == "" {
		return domain.DataRequest{}, errors.New("-start and -end are required")
	}
	startTime, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return domain.DataRequest{}, fmt.Errorf("invalid -start: %w", err)
	}
	endTime, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return domain.DataRequest{}, fmt.Errorf("invalid -end: %w", err)
	}

	req := domain.DataRequest{Start: startTime.UTC(), End: endTime.UTC(), Step: step}

	if region != "" {
		box, err := parseRegion(region)
		if err != nil {
			return domain.DataRequest{}, err
		}
		req.Region = box
	}

	if err := req.Validate(); err != nil {
		return domain.DataRequest{}, err
	}
	return req, nil
}

func parseRegion(value string) (*domain.Region, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("-region must have 4 comma-separated values, got %d", len(parts))
	}
	floats := make([]float64, 4)
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid -region value %q: %w", part, err)
		}
		floats[i] = f
	}
	return &domain.Region{TopLat: floats[0], LeftLon: floats[1], BottomLat: floats[2], RightLon: floats[3]}, nil
}

// codecDecoder adapts the package-level codec.DecodeAndParse function to
// the pipeline.Decoder interface.
type codecDecoder struct{}

func (codecDecoder) DecodeAndParse(body []byte, region *domain.Region) (map[string]*domain.Station, domain.ParseStats, error) {
	return codec.DecodeAndParse(body, region)
}

// upsertAdapter translates between mongostore.UpsertReport and
// pipeline.UpsertReport: the two are structurally identical but distinct
// named types, so *mongostore.Store does not directly satisfy
// pipeline.Upserter.
type upsertAdapter struct {
	store *mongostore.Store
}

func (a upsertAdapter) UpsertStations(ctx context.Context, chunk map[string]*domain.Station) (pipeline.UpsertReport, error) {
	report, err := a.store.UpsertStations(ctx, chunk)
	return pipeline.UpsertReport{Upserted: report.Upserted, Skipped: report.Skipped}, err
}
