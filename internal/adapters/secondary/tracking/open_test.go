package tracking

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-stage-promoter/internal/config"
	"model-stage-promoter/internal/core/domain"
)

func TestUriScheme(t *testing.T) {
	assert.Equal(t, "file", uriScheme("file:./mlruns"))
	assert.Equal(t, "https", uriScheme("https://mlflow.example.com"))
	assert.Equal(t, "postgresql", uriScheme("postgresql+psycopg2://u@db/mlflow"))
	assert.Equal(t, "", uriScheme("./mlruns"))
	assert.Equal(t, "", uriScheme(`C:\mlruns`))
	assert.Equal(t, "", uriScheme("mlruns"))
}

func TestFileRoot(t *testing.T) {
	tests := map[string]string{
		"file:./mlruns":      "./mlruns",
		"file:///srv/mlruns": "/srv/mlruns",
		"./mlruns":           "./mlruns",
		"/srv/mlruns":        "/srv/mlruns",
	}
	for uri, want := range tests {
		got, err := fileRoot(uri)
		require.NoError(t, err, uri)
		assert.Equal(t, want, got, uri)
	}
}

func TestOpen_FileStore(t *testing.T) {
	client, err := Open(context.Background(), &config.TrackingConfig{URI: "file:" + t.TempDir()})
	require.NoError(t, err)
	defer client.Close()

	versions, err := client.SearchModelVersions(context.Background(), "Ridge_Regression_HousePrices")
	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestOpen_SQLite(t *testing.T) {
	uri := "sqlite:///" + filepath.Join(t.TempDir(), "mlflow.db")
	client, err := Open(context.Background(), &config.TrackingConfig{URI: uri})
	require.NoError(t, err)
	assert.NoError(t, client.Close())
}

func TestOpen_REST(t *testing.T) {
	client, err := Open(context.Background(), &config.TrackingConfig{URI: "http://localhost:5000"})
	require.NoError(t, err)
	assert.NoError(t, client.Close())
}

func TestOpen_Unsupported(t *testing.T) {
	_, err := Open(context.Background(), &config.TrackingConfig{URI: "databricks://profile"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedTrackingURI)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "postgresql://mlflow:xxxxx@db/mlflow", redact("postgresql://mlflow:secret@db/mlflow"))
	assert.Equal(t, "file:./mlruns", redact("file:./mlruns"))
}
