package ports

import "model-stage-promoter/internal/core/domain"

// Reporter receives human-facing progress events from a promotion run.
type Reporter interface {
	Start(modelName string)
	LatestVersion(version int)
	Transitioning(stage domain.Stage)
	Transitioned(modelName string, version int, stage domain.Stage)
	TransitionFailed(err error)
	Verified(stage domain.Stage, version int)
	NotInStage(modelName string, stage domain.Stage)
	Done()
}
