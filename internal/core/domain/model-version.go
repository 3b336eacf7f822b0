package domain

import (
	"sort"
	"strings"
	"time"
)

type Stage string

const (
	StageNone       Stage = "None"
	StageStaging    Stage = "Staging"
	StageProduction Stage = "Production"
	StageArchived   Stage = "Archived"

	// StageDeletedInternal marks versions soft-deleted by SQL-backed stores.
	// It is never a valid transition target and never returned by searches.
	StageDeletedInternal Stage = "Deleted_Internal"
)

// Stages that a version may be transitioned to.
var allowedStages = map[string]Stage{
	"none":       StageNone,
	"staging":    StageStaging,
	"production": StageProduction,
	"archived":   StageArchived,
}

// ParseStage canonicalises a stage name case-insensitively.
func ParseStage(s string) (Stage, error) {
	stage, ok := allowedStages[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", ErrInvalidStage
	}
	return stage, nil
}

// ValidateTransition checks a transition request before it reaches a store.
// Archiving existing occupants is only meaningful for Staging and Production.
func ValidateTransition(stage Stage, archiveExisting bool) error {
	if _, err := ParseStage(string(stage)); err != nil {
		return err
	}
	if archiveExisting && stage != StageStaging && stage != StageProduction {
		return ErrArchiveNotAllowed
	}
	return nil
}

type ModelVersion struct {
	Name         string    `json:"name"`
	Version      int       `json:"version"`
	CurrentStage Stage     `json:"current_stage"`
	Description  string    `json:"description"`
	Source       string    `json:"source"`
	RunID        string    `json:"run_id"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LatestVersion returns the highest version number in versions, regardless
// of ordering.
func LatestVersion(versions []*ModelVersion) (int, error) {
	if len(versions) == 0 {
		return 0, ErrNoVersions
	}
	latest := versions[0].Version
	for _, v := range versions[1:] {
		if v.Version > latest {
			latest = v.Version
		}
	}
	return latest, nil
}

// InStage returns the versions currently in stage, highest version first.
func InStage(versions []*ModelVersion, stage Stage) []*ModelVersion {
	var out []*ModelVersion
	for _, v := range versions {
		if v.CurrentStage == stage {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out
}
