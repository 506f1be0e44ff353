// Package ingest defines the shared contracts the HTTP Collector and Bus
// Subscriber both write through, so neither ingestion path depends on the
// concrete store or registry implementation — only on the narrow interface
// each actually uses, the teacher's "small interfaces behind the pipeline
// stage boundary" pattern (engine/internal/pipeline.Pipeline takes a
// RateLimiter/ResourceManager interface, not a concrete type).
package ingest

import (
	"context"
	"time"

	"github.com/fieldwatch/aegis/internal/models"
)

// Sink is what ingestion loops write normalized records to.
type Sink interface {
	InsertTracks(ctx context.Context, rows []models.Track) error
	InsertSignals(ctx context.Context, rows []models.Signal) error
	InsertHealth(ctx context.Context, rows []models.HealthSample) error
	UpsertKit(ctx context.Context, k models.Kit) error
	TouchKit(ctx context.Context, id string, source models.Source, observedAt time.Time) error
	QueueDepth() int
}

// RegistryUpdater is the subset of the Kit Registry ingestion loops drive.
type RegistryUpdater interface {
	Get(id string) (models.Kit, bool)
	Touch(id string, source models.Source, observedAt time.Time)
	AutoRegister(ctx context.Context, id string, source models.Source, observedAt time.Time)
	RecordFailure(id string)
}
