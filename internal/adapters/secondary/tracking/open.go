package tracking

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"

	"model-stage-promoter/internal/adapters/secondary/filestore"
	"model-stage-promoter/internal/adapters/secondary/rest"
	"model-stage-promoter/internal/adapters/secondary/sqlstore"
	"model-stage-promoter/internal/config"
	"model-stage-promoter/internal/core/domain"
	ports "model-stage-promoter/internal/core/ports/output"
)

// Open returns the tracking client matching cfg.URI's scheme.
func Open(ctx context.Context, cfg *config.TrackingConfig) (ports.TrackingClient, error) {
	scheme := uriScheme(cfg.URI)

	var (
		client ports.TrackingClient
		err    error
	)
	switch scheme {
	case "", "file":
		var root string
		root, err = fileRoot(cfg.URI)
		if err == nil {
			client = filestore.NewStore(root)
		}
	case "http", "https":
		client = rest.NewClient(cfg)
	case "sqlite", "postgresql", "postgres":
		client, err = sqlstore.Open(ctx, cfg.URI)
	default:
		err = fmt.Errorf("%w: %q", domain.ErrUnsupportedTrackingURI, cfg.URI)
	}
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"scheme": scheme,
		"uri":    redact(cfg.URI),
	}).Debug("tracking client opened")
	return client, nil
}

// uriScheme returns the scheme without any "+driver" suffix, or "" for a bare path.
func uriScheme(uri string) string {
	i := strings.Index(uri, ":")
	// Windows drive letters ("C:\mlruns") are paths, not schemes.
	if i <= 1 {
		return ""
	}
	scheme := strings.ToLower(uri[:i])
	for _, r := range scheme {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return ""
		}
	}
	base, _, _ := strings.Cut(scheme, "+")
	return base
}

// fileRoot resolves file:./mlruns, file:///abs/mlruns and bare paths.
func fileRoot(uri string) (string, error) {
	if uriScheme(uri) == "" {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnsupportedTrackingURI, err)
	}
	root := u.Opaque
	if root == "" {
		root = u.Path
	}
	if root == "" {
		return "", fmt.Errorf("%w: file URI has no path", domain.ErrUnsupportedTrackingURI)
	}
	return root, nil
}

// redact hides credentials embedded in a URI.
func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.User == nil {
		return uri
	}
	return u.Redacted()
}
