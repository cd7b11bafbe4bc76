package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/tally/internal/errors"
	"github.com/julianstephens/tally/internal/models"
)

func sampleSubmission(strategy Strategy) Submission {
	return Submission{
		SchemaVersion: "1.0.0",
		Strategy:      strategy,
		Challenges: []models.Challenge{{
			ID: "c1", Name: "Pushups", TargetNumber: 1000, Year: 2025, Color: "#fff", Icon: "star",
			TimeframeUnit: models.TimeframeYear, CreatedAt: 1, UpdatedAt: 1,
		}},
		Entries: []models.Entry{
			{ID: "e1", ChallengeID: "c1", Date: "2025-01-15", Count: 50, CreatedAt: 1, UpdatedAt: 1},
			{ID: "e2", ChallengeID: "c1", Date: "2025-01-16", Count: 30, Sets: models.Sets{10, 20}, CreatedAt: 2, UpdatedAt: 2},
		},
	}
}

func newTestHTTP(t *testing.T, handler http.HandlerFunc, gzipped bool) *HTTP {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	gw, err := NewHTTP(HTTPConfig{BaseURL: srv.URL + "/", Token: "secret", Gzip: gzipped})
	require.NoError(t, err)
	return gw
}

func TestHTTPImport(t *testing.T) {
	var got Submission
	gw := newTestHTTP(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/migration/import", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Content-Encoding"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"success":true,"challengesImported":1,"entriesImported":2}`)
	}, false)

	res, err := gw.Import(context.Background(), sampleSubmission(StrategyReplace))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.ChallengesImported)
	assert.Equal(t, 2, res.EntriesImported)

	assert.Equal(t, "1.0.0", got.SchemaVersion)
	assert.Equal(t, StrategyReplace, got.Strategy)
	require.Len(t, got.Entries, 2)
	assert.Equal(t, models.Sets{10, 20}, got.Entries[1].Sets)
}

func TestHTTPImportGzip(t *testing.T) {
	var got Submission
	gw := newTestHTTP(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gzip", r.Header.Get("Content-Encoding"))
		zr, err := gzip.NewReader(r.Body)
		require.NoError(t, err)
		defer zr.Close()
		require.NoError(t, json.NewDecoder(zr).Decode(&got))
		_, _ = io.WriteString(w, `{"success":true,"challengesImported":1,"entriesImported":2}`)
	}, true)

	_, err := gw.Import(context.Background(), sampleSubmission(StrategySkip))
	require.NoError(t, err)
	assert.Equal(t, StrategySkip, got.Strategy)
	assert.Len(t, got.Challenges, 1)
}

func TestHTTPImportRejected(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"invalid token"}`, "invalid token"},
		{"server error without body", http.StatusInternalServerError, ``, "Internal Server Error"},
		{"plain text", http.StatusBadRequest, `bad payload`, "bad payload"},
		{"success false", http.StatusOK, `{"success":false,"error":"quota exceeded"}`, "quota exceeded"},
		{"malformed", http.StatusOK, `not json`, "malformed response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newTestHTTP(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}, false)

			_, err := gw.Import(context.Background(), sampleSubmission(StrategyReplace))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrRemoteRejected), "got %v", err)
			assert.False(t, errors.Is(err, errors.ErrNetwork))

			var rejected *errors.RemoteRejectedError
			require.True(t, errors.As(err, &rejected))
			assert.Equal(t, tt.status, rejected.Status)
			assert.Contains(t, rejected.Message, tt.message)
		})
	}
}

func TestHTTPUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	gw, err := NewHTTP(HTTPConfig{BaseURL: srv.URL, Token: "secret"})
	require.NoError(t, err)
	srv.Close()

	_, err = gw.Import(context.Background(), sampleSubmission(StrategyReplace))
	assert.True(t, errors.Is(err, errors.ErrNetwork), "got %v", err)

	_, err = gw.Probe(context.Background())
	assert.True(t, errors.Is(err, errors.ErrNetwork), "got %v", err)
}

func TestHTTPTimeout(t *testing.T) {
	gw := newTestHTTP(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}, false)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := gw.Import(ctx, sampleSubmission(StrategyReplace))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNetwork), "got %v", err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestHTTPProbe(t *testing.T) {
	gw := newTestHTTP(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/migration/status", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"challengeCount":3,"entryCount":12}`)
	}, false)

	state, err := gw.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CloudState{HasData: true, ChallengeCount: 3, EntryCount: 12}, state)
}

func TestNewHTTPConfig(t *testing.T) {
	_, err := NewHTTP(HTTPConfig{Token: "t"})
	assert.Error(t, err)

	_, err = NewHTTP(HTTPConfig{BaseURL: "ftp://example.com", Token: "t"})
	assert.Error(t, err)

	_, err = NewHTTP(HTTPConfig{BaseURL: "https://example.com"})
	assert.ErrorContains(t, err, "token")
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{
		"replace": StrategyReplace, "replace-cloud": StrategyReplace,
		"skip": StrategySkip, "keep-cloud": StrategySkip,
	} {
		got, err := ParseStrategy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseStrategy("merge")
	assert.Error(t, err)
}
