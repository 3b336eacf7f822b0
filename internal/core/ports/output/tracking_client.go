package ports

import (
	"context"

	"model-stage-promoter/internal/core/domain"
)

// TrackingClient defines the contract for a model tracking store
// (MLflow file store, REST server or SQL database).
type TrackingClient interface {
	// SearchModelVersions lists every live version of the named model.
	// A model with no versions yields an empty slice, not an error.
	SearchModelVersions(ctx context.Context, name string) ([]*domain.ModelVersion, error)

	// TransitionStage moves version to stage. When archiveExisting is set,
	// other versions currently in stage are moved to Archived.
	TransitionStage(ctx context.Context, name string, version int, stage domain.Stage, archiveExisting bool) (*domain.ModelVersion, error)

	// Close releases the session.
	Close() error
}
