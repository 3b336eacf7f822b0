package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"model-stage-promoter/internal/core/domain"
)

const model = "Ridge_Regression_HousePrices"

func writeVersion(t *testing.T, root, name string, version int, stage domain.Stage) string {
	t.Helper()
	dir := filepath.Join(root, modelsDir, name, fmt.Sprintf("version-%d", version))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	meta := fmt.Sprintf(`creation_timestamp: 1700000000000
current_stage: %s
description: ''
last_updated_timestamp: 1700000000000
name: %s
run_id: run-%d
run_link: ''
source: file:///mlruns/0/run-%d/artifacts/model
status: READY
status_message: null
user_id: null
version: %d
`, stage, name, version, version, version)
	path := filepath.Join(dir, metaFile)
	require.NoError(t, os.WriteFile(path, []byte(meta), 0o644))
	return path
}

func readRaw(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	raw := map[string]any{}
	require.NoError(t, yaml.Unmarshal(data, &raw))
	return raw
}

func newTestStore(root string) *store {
	s := NewStore(root).(*store)
	s.now = func() time.Time { return time.UnixMilli(1800000000000) }
	return s
}

func TestSearchModelVersions(t *testing.T) {
	root := t.TempDir()
	writeVersion(t, root, model, 2, domain.StageStaging)
	writeVersion(t, root, model, 10, domain.StageNone)
	writeVersion(t, root, model, 1, domain.StageProduction)
	writeVersion(t, root, model, 3, domain.StageDeletedInternal)
	writeVersion(t, root, "Other_Model", 99, domain.StageNone)

	versions, err := newTestStore(root).SearchModelVersions(context.Background(), model)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, 2, versions[1].Version)
	assert.Equal(t, 10, versions[2].Version)
	assert.Equal(t, domain.StageProduction, versions[0].CurrentStage)
	assert.Equal(t, "run-2", versions[1].RunID)
	assert.Equal(t, "READY", versions[2].Status)
}

func TestSearchModelVersions_UnknownModel(t *testing.T) {
	versions, err := newTestStore(t.TempDir()).SearchModelVersions(context.Background(), model)
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestSearchModelVersions_RejectsPathNames(t *testing.T) {
	_, err := newTestStore(t.TempDir()).SearchModelVersions(context.Background(), "../etc")
	assert.ErrorIs(t, err, domain.ErrInvalidModelName)
}

func TestSearchModelVersions_CorruptMeta(t *testing.T) {
	root := t.TempDir()
	path := writeVersion(t, root, model, 1, domain.StageNone)
	require.NoError(t, os.WriteFile(path, []byte("version: [unterminated"), 0o644))

	_, err := newTestStore(root).SearchModelVersions(context.Background(), model)
	assert.Equal(t, domain.KindSerialization, domain.KindOf(err))
}

func TestTransitionStage_ArchivesExisting(t *testing.T) {
	root := t.TempDir()
	oldProd := writeVersion(t, root, model, 1, domain.StageProduction)
	staging := writeVersion(t, root, model, 2, domain.StageStaging)
	target := writeVersion(t, root, model, 3, domain.StageNone)
	s := newTestStore(root)

	mv, err := s.TransitionStage(context.Background(), model, 3, domain.StageProduction, true)
	require.NoError(t, err)
	assert.Equal(t, domain.StageProduction, mv.CurrentStage)
	assert.Equal(t, int64(1800000000000), mv.UpdatedAt.UnixMilli())

	assert.Equal(t, "Archived", readRaw(t, oldProd)["current_stage"])
	assert.Equal(t, "Staging", readRaw(t, staging)["current_stage"])
	raw := readRaw(t, target)
	assert.Equal(t, "Production", raw["current_stage"])
	assert.Equal(t, 1800000000000, raw["last_updated_timestamp"])
	assert.Equal(t, "file:///mlruns/0/run-3/artifacts/model", raw["source"])
}

func TestTransitionStage_KeepsExistingWithoutArchive(t *testing.T) {
	root := t.TempDir()
	oldProd := writeVersion(t, root, model, 1, domain.StageProduction)
	writeVersion(t, root, model, 2, domain.StageNone)

	_, err := newTestStore(root).TransitionStage(context.Background(), model, 2, domain.StageProduction, false)
	require.NoError(t, err)
	assert.Equal(t, "Production", readRaw(t, oldProd)["current_stage"])
}

func TestTransitionStage_Idempotent(t *testing.T) {
	root := t.TempDir()
	path := writeVersion(t, root, model, 4, domain.StageProduction)
	s := newTestStore(root)

	for i := 0; i < 2; i++ {
		mv, err := s.TransitionStage(context.Background(), model, 4, domain.StageProduction, true)
		require.NoError(t, err)
		assert.Equal(t, domain.StageProduction, mv.CurrentStage)
	}
	assert.Equal(t, "Production", readRaw(t, path)["current_stage"])
}

func TestTransitionStage_VersionNotFound(t *testing.T) {
	root := t.TempDir()
	writeVersion(t, root, model, 1, domain.StageNone)

	_, err := newTestStore(root).TransitionStage(context.Background(), model, 7, domain.StageProduction, true)
	assert.ErrorIs(t, err, domain.ErrVersionNotFound)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestTransitionStage_TouchesRegisteredModel(t *testing.T) {
	root := t.TempDir()
	writeVersion(t, root, model, 1, domain.StageNone)
	modelMeta := filepath.Join(root, modelsDir, model, metaFile)
	require.NoError(t, os.WriteFile(modelMeta, []byte("name: "+model+"\nlast_updated_timestamp: 1\n"), 0o644))

	_, err := newTestStore(root).TransitionStage(context.Background(), model, 1, domain.StageStaging, false)
	require.NoError(t, err)
	assert.Equal(t, 1800000000000, readRaw(t, modelMeta)["last_updated_timestamp"])
}
