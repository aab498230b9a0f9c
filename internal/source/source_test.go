package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"index-coordinator/internal/config"
	"index-coordinator/pkg/logger"
)

func newTestSource(baseURL string) *HTTPSource {
	return NewHTTPSource(config.ConfigSource{
		BaseURL:        baseURL,
		Token:          "secret",
		PageSize:       2,
		TimeoutSeconds: 5,
	}, logger.NewZapLogger(zap.NewNop()))
}

func TestHTTPSource_FetchRecords(t *testing.T) {
	var gotAuth, gotPath, gotQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		gotPath.Store(r.URL.Path)
		gotQuery.Store(r.URL.Query())
		fmt.Fprint(w, `{"total": 3, "records": [
			{"id": "ORG-1", "title": "first", "body": "one", "updated": "2026-10-01T10:00:00Z"},
			{"id": 2, "title": "second", "body": "two", "updated": "2026-10-02T10:00:00Z"}
		]}`)
	}))
	defer server.Close()

	s := newTestSource(server.URL)
	since := time.Date(2026, 9, 30, 8, 0, 0, 0, time.UTC)

	page, err := s.FetchRecords(context.Background(), "ORG", since, 1)
	require.NoError(t, err)

	assert.Equal(t, "Bearer secret", gotAuth.Load())
	assert.Equal(t, "/api/v1/projects/ORG/records", gotPath.Load())
	query := gotQuery.Load().(url.Values)
	assert.Equal(t, []string{"2026-09-30T08:00:00Z"}, query["updatedAfter"])
	assert.Equal(t, []string{"1"}, query["startAt"])
	assert.Equal(t, []string{"2"}, query["maxResults"])

	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.StartAt)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "ORG-1", page.Records[0].ID)
	assert.Equal(t, "2", page.Records[1].ID)
	assert.True(t, page.Records[1].Updated.Equal(time.Date(2026, 10, 2, 10, 0, 0, 0, time.UTC)))
}

func TestHTTPSource_FetchRecordsWithoutSince(t *testing.T) {
	var hasUpdatedAfter atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasUpdatedAfter.Store(r.URL.Query().Has("updatedAfter"))
		fmt.Fprint(w, `{"total": 0, "records": []}`)
	}))
	defer server.Close()

	page, err := newTestSource(server.URL).FetchRecords(context.Background(), "ORG", time.Time{}, 0)
	require.NoError(t, err)
	assert.False(t, hasUpdatedAfter.Load())
	assert.Empty(t, page.Records)
}

func TestHTTPSource_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"nope"}`, wantErr: "unexpected status: 401"},
		{name: "invalid json", status: http.StatusOK, body: `{"total":`, wantErr: "invalid json response"},
		{name: "missing id", status: http.StatusOK, body: `{"total":1,"records":[{"title":"x"}]}`, wantErr: "record without id"},
		{name: "bad time", status: http.StatusOK, body: `{"total":1,"records":[{"id":"1","updated":"yesterday"}]}`, wantErr: "invalid updated time"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := newTestSource(server.URL).FetchRecords(context.Background(), "ORG", time.Time{}, 0)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestHTTPSource_CancelledContext(t *testing.T) {
	var called atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestSource(server.URL).FetchRecords(ctx, "ORG", time.Time{}, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called.Load())
}

func TestHTTPSource_ListProjectKeys(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/projects", r.URL.Path)
		fmt.Fprint(w, `{"projects": [{"key": "ORG"}, {"key": "AAA"}, {"name": "no key"}]}`)
	}))
	defer server.Close()

	keys, err := newTestSource(server.URL + "/").ListProjectKeys(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ORG", "AAA"}, keys)
}
