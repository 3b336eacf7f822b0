package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"model-stage-promoter/internal/config"
	"model-stage-promoter/internal/core/domain"
	ports "model-stage-promoter/internal/core/ports/output"
)

const (
	searchPath     = "/api/2.0/mlflow/model-versions/search"
	transitionPath = "/api/2.0/mlflow/model-versions/transition-stage"
	pageSize       = 1000
	maxErrorBody   = 4096
	headerRequest  = "X-Request-ID"
)

// MLflow error codes that change the error kind. Every other 4xx, such as
// INVALID_PARAMETER_VALUE, is a rejected request.
const (
	codeResourceDoesNotExist   = "RESOURCE_DOES_NOT_EXIST"
	codeTemporarilyUnavailable = "TEMPORARILY_UNAVAILABLE"
)

type client struct {
	baseURL  string
	token    string
	username string
	password string
	client   *http.Client
}

// NewClient creates a client for an MLflow-compatible tracking server.
func NewClient(cfg *config.TrackingConfig) ports.TrackingClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &client{
		baseURL:  strings.TrimRight(cfg.URI, "/"),
		token:    cfg.Token,
		username: cfg.Username,
		password: cfg.Password,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

// MLflow API structures
type modelVersionJSON struct {
	Name                 string    `json:"name"`
	Version              flexInt64 `json:"version"`
	CreationTimestamp    flexInt64 `json:"creation_timestamp"`
	LastUpdatedTimestamp flexInt64 `json:"last_updated_timestamp"`
	CurrentStage         string    `json:"current_stage"`
	Description          string    `json:"description"`
	Source               string    `json:"source"`
	RunID                string    `json:"run_id"`
	Status               string    `json:"status"`
}

func (m *modelVersionJSON) toDomain() *domain.ModelVersion {
	return &domain.ModelVersion{
		Name:         m.Name,
		Version:      int(m.Version),
		CurrentStage: domain.Stage(m.CurrentStage),
		Description:  m.Description,
		Source:       m.Source,
		RunID:        m.RunID,
		Status:       m.Status,
		CreatedAt:    time.UnixMilli(int64(m.CreationTimestamp)),
		UpdatedAt:    time.UnixMilli(int64(m.LastUpdatedTimestamp)),
	}
}

type searchResponse struct {
	ModelVersions []modelVersionJSON `json:"model_versions"`
	NextPageToken string             `json:"next_page_token"`
}

type transitionRequest struct {
	Name                    string `json:"name"`
	Version                 string `json:"version"`
	Stage                   string `json:"stage"`
	ArchiveExistingVersions bool   `json:"archive_existing_versions"`
}

type transitionResponse struct {
	ModelVersion *modelVersionJSON `json:"model_version"`
}

type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// flexInt64 accepts int64 values encoded either as JSON numbers or strings.
type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse int64 %s: %w", b, err)
	}
	*f = flexInt64(n)
	return nil
}

func (c *client) SearchModelVersions(ctx context.Context, name string) ([]*domain.ModelVersion, error) {
	var (
		versions  []*domain.ModelVersion
		pageToken string
		seen      = map[string]bool{}
	)
	for {
		params := url.Values{}
		params.Set("filter", nameFilter(name))
		params.Set("max_results", strconv.Itoa(pageSize))
		if pageToken != "" {
			params.Set("page_token", pageToken)
		}

		var resp searchResponse
		if err := c.do(ctx, http.MethodGet, searchPath+"?"+params.Encode(), nil, &resp); err != nil {
			return nil, withOp("search model versions", err)
		}
		for i := range resp.ModelVersions {
			mv := resp.ModelVersions[i].toDomain()
			if mv.CurrentStage == domain.StageDeletedInternal {
				continue
			}
			versions = append(versions, mv)
		}
		if resp.NextPageToken == "" {
			break
		}
		if seen[resp.NextPageToken] {
			return nil, domain.NewTrackingError(domain.KindSerialization, "search model versions",
				fmt.Errorf("server repeated page token %q", resp.NextPageToken))
		}
		seen[resp.NextPageToken] = true
		pageToken = resp.NextPageToken
	}

	if versions == nil {
		versions = []*domain.ModelVersion{}
	}
	return versions, nil
}

func (c *client) TransitionStage(ctx context.Context, name string, version int, stage domain.Stage, archiveExisting bool) (*domain.ModelVersion, error) {
	body := transitionRequest{
		Name:                    name,
		Version:                 strconv.Itoa(version),
		Stage:                   string(stage),
		ArchiveExistingVersions: archiveExisting,
	}

	var resp transitionResponse
	if err := c.do(ctx, http.MethodPost, transitionPath, body, &resp); err != nil {
		return nil, withOp("transition model version stage", err)
	}
	if resp.ModelVersion == nil {
		return nil, domain.NewTrackingError(domain.KindSerialization, "transition model version stage", errors.New("response has no model_version"))
	}
	return resp.ModelVersion.toDomain(), nil
}

// do sends a request and decodes a successful JSON response into out.
// Failures are returned as *domain.TrackingError.
func (c *client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return domain.NewTrackingError(domain.KindSerialization, "", fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return domain.NewTrackingError(domain.KindUnknown, "", fmt.Errorf("create request: %w", err))
	}
	requestID := uuid.New().String()
	req.Header.Set(headerRequest, requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	case c.username != "":
		req.SetBasicAuth(c.username, c.password)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.NewTrackingError(domain.KindServiceUnavailable, "", err)
	}
	defer resp.Body.Close()

	log.WithFields(log.Fields{
		"method":     method,
		"path":       req.URL.Path,
		"status":     resp.StatusCode,
		"latency_ms": time.Since(start).Milliseconds(),
		"request_id": requestID,
	}).Debug("tracking server request completed")

	if resp.StatusCode >= 300 {
		return classify(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewTrackingError(domain.KindSerialization, "", fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// classify maps a non-2xx response to an error kind.
func classify(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var apiErr errorResponse
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &apiErr) == nil && apiErr.ErrorCode != "" {
		msg = fmt.Sprintf("%s: %s", apiErr.ErrorCode, apiErr.Message)
	}
	err := fmt.Errorf("tracking server returned %d: %s", resp.StatusCode, msg)

	switch {
	case apiErr.ErrorCode == codeResourceDoesNotExist, resp.StatusCode == http.StatusNotFound:
		return domain.NewTrackingError(domain.KindNotFound, "", fmt.Errorf("%w: %v", domain.ErrVersionNotFound, err))
	case apiErr.ErrorCode == codeTemporarilyUnavailable,
		resp.StatusCode >= 500,
		resp.StatusCode == http.StatusTooManyRequests:
		return domain.NewTrackingError(domain.KindServiceUnavailable, "", err)
	default:
		return domain.NewTrackingError(domain.KindTransitionRejected, "", err)
	}
}

// withOp names the operation on a tracking error produced by do.
func withOp(op string, err error) error {
	var te *domain.TrackingError
	if errors.As(err, &te) && te.Op == "" {
		te.Op = op
	}
	return err
}

var filterEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// nameFilter builds an MLflow search filter matching name exactly.
func nameFilter(name string) string {
	return "name='" + filterEscaper.Replace(name) + "'"
}
