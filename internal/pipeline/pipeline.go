// Package pipeline implements the two-stage, bounded producer/consumer
// dataflow: file workers fetch and parse archives, DB workers bulk-upsert
// the resulting station chunks.
package pipeline

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/netatmo-archive/ingest-service/internal/domain"
	"github.com/netatmo-archive/ingest-service/internal/observability"
	"github.com/netatmo-archive/ingest-service/internal/planner"
)

// Fetcher downloads one archive's raw bytes.
type Fetcher interface {
	Fetch(ctx context.Context, key domain.ArchiveKey) ([]byte, error)
}

// Decoder decodes and folds one archive's bytes into a per-station map.
type Decoder interface {
	DecodeAndParse(body []byte, region *domain.Region) (map[string]*domain.Station, domain.ParseStats, error)
}

// Upserter bulk-upserts one chunk of stations.
type Upserter interface {
	UpsertStations(ctx context.Context, chunk map[string]*domain.Station) (UpsertReport, error)
}

// UpsertReport mirrors mongostore.UpsertReport so that pipeline does not
// depend directly on the store package, only on this narrow contract.
type UpsertReport struct {
	Upserted int
	Skipped  int
}

// Params configures worker counts and concurrency caps; zero values fall
// back to the source's defaults.
type Params struct {
	FileWorkers      int
	JSONWorkers      int
	StoreConcurrency int
	DBConcurrency    int
	MinChunkSize     int
}

func (p Params) withDefaults() Params {
	if p.FileWorkers <= 0 {
		p.FileWorkers = 2
	}
	if p.JSONWorkers <= 0 {
		p.JSONWorkers = 4
	}
	if p.StoreConcurrency <= 0 {
		p.StoreConcurrency = 2
	}
	if p.DBConcurrency <= 0 {
		p.DBConcurrency = 4
	}
	if p.MinChunkSize <= 0 {
		p.MinChunkSize = 3000
	}
	return p
}

// Pipeline orchestrates one ingestion run end to end.
type Pipeline struct {
	fetcher  Fetcher
	decoder  Decoder
	upserter Upserter
	logger   *slog.Logger
	metrics  *observability.Metrics
	params   Params
}

// New creates a Pipeline with the given collaborators and parameters.
func New(fetcher Fetcher, decoder Decoder, upserter Upserter, logger *slog.Logger, metrics *observability.Metrics, params Params) *Pipeline {
	return &Pipeline{
		fetcher:  fetcher,
		decoder:  decoder,
		upserter: upserter,
		logger:   logger,
		metrics:  metrics,
		params:   params.withDefaults(),
	}
}

// chunkJob is one unit of work on the json queue: a subset of one archive's
// station map, sized per the minChunkSize discipline.
type chunkJob struct {
	chunk map[string]*domain.Station
}

// Run enumerates req's archive keys onto the file queue, fans them out
// across FileWorkers file workers and JSONWorkers DB workers, and blocks
// until the file queue is drained, jsonQueue is closed, and every DB
// worker has exited. It returns a RunSummary, the drained error sink, and a
// non-nil error only for conditions that abort the whole run: an invalid
// request, or cancellation of ctx. Fetch, decode and bulk-write failures,
// Fatal ones included, are returned in the error sink, not as the error.
func (p *Pipeline) Run(ctx context.Context, req domain.DataRequest) (domain.RunSummary, []error, error) {
	runStart := domain.Now()
	summary := domain.RunSummary{Request: req}

	keys, err := planner.Keys(req)
	if err != nil {
		return summary, nil, err
	}

	fileQueue := make(chan domain.ArchiveKey, len(keys))
	for _, k := range keys {
		fileQueue <- k
	}
	close(fileQueue)

	jsonQueue := make(chan chunkJob, 2*p.params.JSONWorkers)
	storeSem := make(chan struct{}, p.params.StoreConcurrency)
	dbSem := make(chan struct{}, p.params.DBConcurrency)

	// errSink is the shared, single-consumer error sink: many producers,
	// drained once after every worker has joined.
	errSink := make(chan error, len(keys)+p.params.JSONWorkers)
	var errs []error
	sinkDone := make(chan struct{})
	go func() {
		defer close(sinkDone)
		for e := range errSink {
			errs = append(errs, e)
		}
	}()

	var mu sync.Mutex // guards summary counters shared across workers

	group, gctx := errgroup.WithContext(ctx)

	var fileWG sync.WaitGroup
	fileWG.Add(p.params.FileWorkers)
	for i := 0; i < p.params.FileWorkers; i++ {
		group.Go(func() error {
			defer fileWG.Done()
			return p.fileWorkerLoop(gctx, fileQueue, jsonQueue, storeSem, req.Region, errSink, &mu, &summary)
		})
	}

	// jsonQueue is closed once every file worker has exited — the sentinel-
	// via-close idiom substituting for the source's poison-pill tokens.
	go func() {
		fileWG.Wait()
		close(jsonQueue)
	}()

	for i := 0; i < p.params.JSONWorkers; i++ {
		group.Go(func() error {
			return p.dbWorkerLoop(gctx, jsonQueue, dbSem, errSink, &mu, &summary)
		})
	}

	runErr := group.Wait()

	close(errSink)
	<-sinkDone

	summary.Duration = domain.Now().Sub(runStart)
	summary.ErrorCount = len(errs)

	p.logger.Info("ingestion run complete",
		"filesFetched", summary.FilesFetched,
		"filesNotFound", summary.FilesNotFound,
		"filesFailed", summary.FilesFailed,
		"stationsUpserted", summary.StationsUpserted,
		"stationsSkipped", summary.StationsSkipped,
		"chunksWritten", summary.ChunksWritten,
		"errorCount", summary.ErrorCount,
		"durationSeconds", summary.Duration.Seconds(),
	)

	return summary, errs, runErr
}

// fileWorkerLoop pops keys from fileQueue until it is drained (closed),
// fetching and decoding each, then sharding the result into chunks pushed
// onto jsonQueue. Any fetch error (NotFound, Fatal or other), and a
// DecodeError on a corrupted/truncated archive, are logged and recorded in
// errSink; the loop continues — a single bad file never stops the run.
func (p *Pipeline) fileWorkerLoop(ctx context.Context, fileQueue <-chan domain.ArchiveKey, jsonQueue chan<- chunkJob, storeSem chan struct{}, region *domain.Region, errSink chan<- error, mu *sync.Mutex, summary *domain.RunSummary) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case key, ok := <-fileQueue:
			if !ok {
				return nil
			}
			p.metrics.FileQueueDepth.Set(float64(len(fileQueue)))

			body, err := p.fetchOne(ctx, key, storeSem)
			if err != nil {
				p.recordFetchError(key, err, errSink, mu, summary)
				continue
			}

			mu.Lock()
			summary.FilesFetched++
			mu.Unlock()
			p.metrics.FilesFetched.Inc()

			stations, stats, err := p.decoder.DecodeAndParse(body, region)
			if err != nil {
				p.recordDecodeError(key, err, errSink, mu, summary)
				continue
			}

			p.logger.Debug("archive parsed",
				"key", string(key),
				"stationsInFile", stats.StationsInFile,
				"stationsOutOfRegion", stats.StationsOutOfRegion,
				"newStations", stats.NewStations,
				"stationCount", stats.StationCount,
				"thermoContributions", stats.StationThermoContributions,
				"hydroContributions", stats.StationHydroContributions,
			)

			for _, chunk := range shard(stations, p.params.JSONWorkers, p.params.MinChunkSize) {
				p.metrics.ChunkSize.Observe(float64(len(chunk)))
				select {
				case jsonQueue <- chunkJob{chunk: chunk}:
					p.metrics.JSONQueueDepth.Set(float64(len(jsonQueue)))
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

// fetchOne acquires storeSem, fetches key, and releases storeSem, bounding
// simultaneous object-store fetches to storeConcurrency independent of
// fileWorkers.
func (p *Pipeline) fetchOne(ctx context.Context, key domain.ArchiveKey, storeSem chan struct{}) ([]byte, error) {
	select {
	case storeSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-storeSem }()

	start := time.Now()
	body, err := p.fetcher.Fetch(ctx, key)
	p.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	return body, err
}

func (p *Pipeline) recordFetchError(key domain.ArchiveKey, err error, errSink chan<- error, mu *sync.Mutex, summary *domain.RunSummary) {
	mu.Lock()
	defer mu.Unlock()

	switch {
	case domain.Is(err, domain.NotFound):
		summary.FilesNotFound++
		p.metrics.FilesNotFound.Inc()
		p.logger.Info("archive not found, skipping", "key", string(key))
	default:
		summary.FilesFailed++
		p.metrics.FilesFailed.Inc()
		p.logger.Error("archive fetch failed", "key", string(key), "error", err)
	}
	errSink <- err
}

// recordDecodeError logs and counts a DecodeError on a fetched archive as a
// failed file, not a run-aborting condition: a corrupted or truncated
// archive is recorded and skipped, exactly like a fetch failure.
func (p *Pipeline) recordDecodeError(key domain.ArchiveKey, err error, errSink chan<- error, mu *sync.Mutex, summary *domain.RunSummary) {
	mu.Lock()
	summary.FilesFailed++
	mu.Unlock()

	p.metrics.FilesFailed.Inc()
	p.logger.Error("archive decode failed", "key", string(key), "error", err)
	errSink <- err
}

// dbWorkerLoop pops chunks from jsonQueue until it is drained (closed),
// bulk-upserting each under dbSem. Bulk-write errors are captured in
// errSink and do not terminate the worker.
func (p *Pipeline) dbWorkerLoop(ctx context.Context, jsonQueue <-chan chunkJob, dbSem chan struct{}, errSink chan<- error, mu *sync.Mutex, summary *domain.RunSummary) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job, ok := <-jsonQueue:
			if !ok {
				return nil
			}
			p.metrics.JSONQueueDepth.Set(float64(len(jsonQueue)))

			select {
			case dbSem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}

			start := time.Now()
			report, err := p.upserter.UpsertStations(ctx, job.chunk)
			p.metrics.BulkWriteDuration.Observe(time.Since(start).Seconds())
			<-dbSem

			p.metrics.BulkWrites.Inc()
			mu.Lock()
			summary.ChunksWritten++
			summary.StationsUpserted += report.Upserted
			summary.StationsSkipped += report.Skipped
			mu.Unlock()

			if err != nil {
				p.metrics.BulkErrors.Inc()
				p.logger.Error("bulk upsert failed", "error", err)
				errSink <- err
			}
		}
	}
}

// shard splits stations into chunks of size max(ceil(len/jsonWorkers),
// minChunkSize), except the final remainder chunk, which may be smaller.
func shard(stations map[string]*domain.Station, jsonWorkers, minChunkSize int) []map[string]*domain.Station {
	if len(stations) == 0 {
		return nil
	}

	size := int(math.Ceil(float64(len(stations)) / float64(jsonWorkers)))
	if size < minChunkSize {
		size = minChunkSize
	}

	var chunks []map[string]*domain.Station
	current := make(map[string]*domain.Station, size)
	for id, st := range stations {
		current[id] = st
		if len(current) >= size {
			chunks = append(chunks, current)
			current = make(map[string]*domain.Station, size)
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}
