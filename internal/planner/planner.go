// Package planner expands a time window into the ordered list of archive
// object keys a run needs to fetch.
package planner

import (
	"fmt"
	"time"

	"github.com/netatmo-archive/ingest-service/internal/domain"
)

// Keys returns the ordered ArchiveKeys for every instant t with
// start <= t <= end and t = start + k*step, for k = 0, 1, 2, ...
//
// It fails with domain.InvalidRequest if step <= 0 or end < start, mirroring
// domain.DataRequest.Validate so callers that skip Validate still get the
// same rejection.
func Keys(req domain.DataRequest) ([]domain.ArchiveKey, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var keys []domain.ArchiveKey
	for t := req.Start.UTC(); !t.After(req.End); t = t.Add(req.Step) {
		keys = append(keys, keyFor(t))
	}
	return keys, nil
}

// keyFor formats a UTC instant as netatmo_YYYYMMDD_HHMM.json.gz.
func keyFor(t time.Time) domain.ArchiveKey {
	return domain.ArchiveKey(fmt.Sprintf("netatmo_%04d%02d%02d_%02d%02d.json.gz",
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute()))
}
