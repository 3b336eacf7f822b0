package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"model-stage-promoter/internal/core/domain"
	ports "model-stage-promoter/internal/core/ports/output"
)

const (
	modelsDir      = "models"
	metaFile       = "meta.yaml"
	versionPrefix  = "version-"
	lockFile       = ".lock"
	lockRetryDelay = 50 * time.Millisecond
)

// Keys rewritten in meta.yaml on transition.
const (
	keyCurrentStage         = "current_stage"
	keyLastUpdatedTimestamp = "last_updated_timestamp"
)

type versionMeta struct {
	Name                 string `yaml:"name"`
	Version              int    `yaml:"version"`
	CurrentStage         string `yaml:"current_stage"`
	Description          string `yaml:"description"`
	Source               string `yaml:"source"`
	RunID                string `yaml:"run_id"`
	Status               string `yaml:"status"`
	CreationTimestamp    int64  `yaml:"creation_timestamp"`
	LastUpdatedTimestamp int64  `yaml:"last_updated_timestamp"`
}

func (m *versionMeta) toDomain() *domain.ModelVersion {
	return &domain.ModelVersion{
		Name:         m.Name,
		Version:      m.Version,
		CurrentStage: domain.Stage(m.CurrentStage),
		Description:  m.Description,
		Source:       m.Source,
		RunID:        m.RunID,
		Status:       m.Status,
		CreatedAt:    time.UnixMilli(m.CreationTimestamp),
		UpdatedAt:    time.UnixMilli(m.LastUpdatedTimestamp),
	}
}

type store struct {
	root string
	now  func() time.Time
}

// NewStore opens a directory-backed registry rooted at root (e.g. ./mlruns).
// The directory need not exist until a model is registered in it.
func NewStore(root string) ports.TrackingClient {
	return &store{root: root, now: time.Now}
}

func (s *store) Close() error {
	return nil
}

func (s *store) modelDir(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", domain.NewTrackingError(domain.KindTransitionRejected, "resolve model directory", fmt.Errorf("%w: %q", domain.ErrInvalidModelName, name))
	}
	return filepath.Join(s.root, modelsDir, name), nil
}

func (s *store) SearchModelVersions(ctx context.Context, name string) ([]*domain.ModelVersion, error) {
	dir, err := s.modelDir(name)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*domain.ModelVersion{}, nil
		}
		return nil, domain.NewTrackingError(domain.KindServiceUnavailable, "search model versions", err)
	}

	versions := make([]*domain.ModelVersion, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.IsDir() || !strings.HasPrefix(e.Name(), versionPrefix) {
			continue
		}
		meta, _, err := readMeta(filepath.Join(dir, e.Name(), metaFile))
		if err != nil {
			return nil, err
		}
		if domain.Stage(meta.CurrentStage) == domain.StageDeletedInternal {
			continue
		}
		versions = append(versions, meta.toDomain())
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i].Version < versions[j].Version })
	return versions, nil
}

func (s *store) TransitionStage(ctx context.Context, name string, version int, stage domain.Stage, archiveExisting bool) (*domain.ModelVersion, error) {
	dir, err := s.modelDir(name)
	if err != nil {
		return nil, err
	}
	target := filepath.Join(dir, versionPrefix+strconv.Itoa(version), metaFile)
	if _, err := os.Stat(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewTrackingError(domain.KindNotFound, "transition stage", fmt.Errorf("%w: %s version %d", domain.ErrVersionNotFound, name, version))
		}
		return nil, domain.NewTrackingError(domain.KindServiceUnavailable, "transition stage", err)
	}

	lock := flock.New(filepath.Join(dir, lockFile))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.NewTrackingError(domain.KindServiceUnavailable, "acquire model lock", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.WithError(err).Warn("failed to release model lock")
		}
	}()

	nowMs := s.now().UnixMilli()

	if archiveExisting {
		if err := s.archiveOthers(dir, version, stage, nowMs); err != nil {
			return nil, err
		}
	}

	meta, raw, err := readMeta(target)
	if err != nil {
		return nil, err
	}
	raw[keyCurrentStage] = string(stage)
	raw[keyLastUpdatedTimestamp] = nowMs
	if err := writeMeta(target, raw); err != nil {
		return nil, err
	}
	meta.CurrentStage = string(stage)
	meta.LastUpdatedTimestamp = nowMs

	s.touchModel(dir, nowMs)

	log.WithFields(log.Fields{
		"model":   name,
		"version": version,
		"stage":   stage,
		"root":    s.root,
	}).Debug("file store transition written")
	return meta.toDomain(), nil
}

// archiveOthers moves every other version currently in stage to Archived.
func (s *store) archiveOthers(dir string, version int, stage domain.Stage, nowMs int64) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return domain.NewTrackingError(domain.KindServiceUnavailable, "archive existing versions", err)
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == versionPrefix+strconv.Itoa(version) || !strings.HasPrefix(e.Name(), versionPrefix) {
			continue
		}
		path := filepath.Join(dir, e.Name(), metaFile)
		meta, raw, err := readMeta(path)
		if err != nil {
			return err
		}
		if domain.Stage(meta.CurrentStage) != stage {
			continue
		}
		raw[keyCurrentStage] = string(domain.StageArchived)
		raw[keyLastUpdatedTimestamp] = nowMs
		if err := writeMeta(path, raw); err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"model":   meta.Name,
			"version": meta.Version,
			"from":    stage,
		}).Info("archived model version")
	}
	return nil
}

// touchModel bumps the registered model's last update time, if it has metadata.
func (s *store) touchModel(dir string, nowMs int64) {
	path := filepath.Join(dir, metaFile)
	_, raw, err := readMeta(path)
	if err != nil {
		return
	}
	raw[keyLastUpdatedTimestamp] = nowMs
	if err := writeMeta(path, raw); err != nil {
		log.WithError(err).Warn("failed to update registered model timestamp")
	}
}

// readMeta decodes path both typed and as a raw map, so that rewrites keep
// fields this program does not know about.
func readMeta(path string) (*versionMeta, map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, domain.NewTrackingError(domain.KindServiceUnavailable, "read "+path, err)
	}

	var meta versionMeta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, nil, domain.NewTrackingError(domain.KindSerialization, "decode "+path, err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, nil, domain.NewTrackingError(domain.KindSerialization, "decode "+path, err)
	}
	return &meta, raw, nil
}

func writeMeta(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return domain.NewTrackingError(domain.KindSerialization, "encode "+path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return domain.NewTrackingError(domain.KindServiceUnavailable, "write "+path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return domain.NewTrackingError(domain.KindServiceUnavailable, "replace "+path, err)
	}
	return nil
}
