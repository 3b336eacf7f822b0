package console

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"model-stage-promoter/internal/core/domain"
)

func TestRenderVersions_NewestFirst(t *testing.T) {
	out := RenderVersions([]*domain.ModelVersion{
		{Name: model, Version: 1, CurrentStage: domain.StageArchived, RunID: "run-a"},
		{Name: model, Version: 2, CurrentStage: domain.StageProduction, RunID: "run-b"},
	})

	assert.Contains(t, out, "VERSION")
	assert.Contains(t, out, "Production")
	assert.Less(t, strings.Index(out, "run-b"), strings.Index(out, "run-a"))
}

func TestRenderVersions_Empty(t *testing.T) {
	out := RenderVersions(nil)
	assert.Contains(t, out, "STAGE")
}
