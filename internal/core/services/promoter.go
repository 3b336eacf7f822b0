package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"model-stage-promoter/internal/core/domain"
	output "model-stage-promoter/internal/core/ports/output"
)

// Outcome summarises how a promotion run ended.
type Outcome string

const (
	OutcomePromoted Outcome = "PROMOTED"
	OutcomeVerified Outcome = "VERIFIED"
	OutcomeFailed   Outcome = "FAILED"
)

// VerifyPolicy bounds verification-by-polling after a failed transition.
type VerifyPolicy struct {
	// Delay before the first read, and the initial backoff interval
	// (never below minVerifyInterval).
	Delay time.Duration
	// Attempts is the total number of reads. Values below 1 mean 1.
	Attempts int
	// MaxInterval caps the exponential backoff between reads.
	MaxInterval time.Duration
}

// PromoteRequest contains parameters for a promotion run
type PromoteRequest struct {
	ModelName       string
	Stage           domain.Stage
	ArchiveExisting bool
}

// PromoteResult describes a completed promotion run
type PromoteResult struct {
	ModelName       string
	Version         int
	Stage           domain.Stage
	Outcome         Outcome
	VerifiedVersion int
	TransitionErr   error
}

// PromoterService promotes the latest version of a model to a stage.
type PromoterService struct {
	client output.TrackingClient
	policy VerifyPolicy
}

// NewPromoterService creates a new promoter service
func NewPromoterService(client output.TrackingClient, policy VerifyPolicy) *PromoterService {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &PromoterService{client: client, policy: policy}
}

// ListVersions returns every live version of the model, as the store reports them.
func (s *PromoterService) ListVersions(ctx context.Context, modelName string) ([]*domain.ModelVersion, error) {
	if modelName == "" {
		return nil, domain.ErrInvalidModelName
	}
	return s.client.SearchModelVersions(ctx, modelName)
}

// ResolveLatestVersion returns the highest version number registered for modelName.
func (s *PromoterService) ResolveLatestVersion(ctx context.Context, modelName string) (int, error) {
	versions, err := s.ListVersions(ctx, modelName)
	if err != nil {
		return 0, err
	}

	latest, err := domain.LatestVersion(versions)
	if err != nil {
		return 0, domain.NewTrackingError(domain.KindNotFound, fmt.Sprintf("resolve latest version of %q", modelName), err)
	}

	log.WithFields(log.Fields{
		"model":    modelName,
		"versions": len(versions),
		"latest":   latest,
	}).Debug("resolved latest model version")
	return latest, nil
}

// Promote requests the transition of version to stage.
func (s *PromoterService) Promote(ctx context.Context, modelName string, version int, stage domain.Stage, archiveExisting bool) error {
	if modelName == "" {
		return domain.ErrInvalidModelName
	}
	if version < 1 {
		return domain.ErrInvalidVersion
	}
	if err := domain.ValidateTransition(stage, archiveExisting); err != nil {
		return err
	}

	mv, err := s.client.TransitionStage(ctx, modelName, version, stage, archiveExisting)
	if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"model":   modelName,
		"version": version,
		"stage":   mv.CurrentStage,
	}).Info("model version transitioned")
	return nil
}

var errStageEmpty = errors.New("no version in target stage")

// minVerifyInterval is the shortest wait between verification reads.
const minVerifyInterval = 100 * time.Millisecond

// VerifyStage polls the store until some version of modelName is in stage or
// the policy is exhausted. It returns nil, nil when no version was found.
// It never re-issues the transition.
func (s *PromoterService) VerifyStage(ctx context.Context, modelName string, stage domain.Stage) (*domain.ModelVersion, error) {
	if err := sleep(ctx, s.policy.Delay); err != nil {
		return nil, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.policy.Delay
	if b.InitialInterval < minVerifyInterval {
		b.InitialInterval = minVerifyInterval
	}
	b.MaxInterval = s.policy.MaxInterval
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0

	var (
		found   *domain.ModelVersion
		attempt int
	)
	op := func() error {
		attempt++
		versions, err := s.client.SearchModelVersions(ctx, modelName)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"model":   modelName,
				"attempt": attempt,
				"kind":    domain.KindOf(err).String(),
			}).Warn("verification query failed")
			return err
		}
		if matches := domain.InStage(versions, stage); len(matches) > 0 {
			found = matches[0]
			return nil
		}
		log.WithFields(log.Fields{
			"model":   modelName,
			"stage":   stage,
			"attempt": attempt,
		}).Debug("no version in stage yet")
		return errStageEmpty
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.policy.Attempts-1)), ctx)
	err := backoff.Retry(op, policy)
	if found != nil {
		return found, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if errors.Is(err, errStageEmpty) {
		return nil, nil
	}
	return nil, err
}

// Run resolves the latest version of req.ModelName, transitions it to
// req.Stage and, if the transition fails, verifies by polling whether the
// stage was nonetheless reached. Progress is reported to rep.
//
// Errors before the transition (no versions, unreachable store) are returned.
// A failed transition is not an error: it is reflected in the result outcome.
func (s *PromoterService) Run(ctx context.Context, req PromoteRequest, rep output.Reporter) (*PromoteResult, error) {
	rep.Start(req.ModelName)

	latest, err := s.ResolveLatestVersion(ctx, req.ModelName)
	if err != nil {
		return nil, err
	}
	rep.LatestVersion(latest)
	rep.Transitioning(req.Stage)

	result := &PromoteResult{
		ModelName: req.ModelName,
		Version:   latest,
		Stage:     req.Stage,
	}

	err = s.Promote(ctx, req.ModelName, latest, req.Stage, req.ArchiveExisting)
	if err == nil {
		result.Outcome = OutcomePromoted
		rep.Transitioned(req.ModelName, latest, req.Stage)
		rep.Done()
		return result, nil
	}
	if !recoverable(ctx, err) {
		return nil, err
	}

	log.WithError(err).WithFields(log.Fields{
		"model":   req.ModelName,
		"version": latest,
		"kind":    domain.KindOf(err).String(),
	}).Warn("transition failed, verifying stage")
	result.TransitionErr = err
	rep.TransitionFailed(err)

	mv, verr := s.VerifyStage(ctx, req.ModelName, req.Stage)
	if verr != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if mv != nil {
		result.Outcome = OutcomeVerified
		result.VerifiedVersion = mv.Version
		rep.Verified(req.Stage, mv.Version)
	} else {
		result.Outcome = OutcomeFailed
		rep.NotInStage(req.ModelName, req.Stage)
	}
	rep.Done()
	return result, nil
}

// recoverable reports whether a transition failure may have changed remote
// state, so that verification is worthwhile.
func recoverable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch {
	case errors.Is(err, domain.ErrInvalidModelName),
		errors.Is(err, domain.ErrInvalidVersion),
		errors.Is(err, domain.ErrInvalidStage),
		errors.Is(err, domain.ErrArchiveNotAllowed):
		return false
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
