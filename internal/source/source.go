// Package source fetches project records from the remote issue tracker.
package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"index-coordinator/internal/config"
	"index-coordinator/pkg/logger"
)

const (
	apiListProjects      = "/api/v1/projects"
	apiProjectRecordsFmt = "/api/v1/projects/%s/records"
)

// Record is one remote item of a project.
type Record struct {
	ID      string
	Title   string
	Body    string
	Updated time.Time
}

// RecordPage is one page of records. Total counts all records matching the query.
type RecordPage struct {
	StartAt int
	Total   int
	Records []Record
}

// Source lists projects and their records.
type Source interface {
	// FetchRecords returns records updated at or after since; zero since means all.
	FetchRecords(ctx context.Context, projectKey string, since time.Time, startAt int) (*RecordPage, error)
	ListProjectKeys(ctx context.Context) ([]string, error)
}

// HTTPSource talks to the remote REST API.
type HTTPSource struct {
	cfg        config.ConfigSource
	httpClient *fasthttp.Client
	limiter    *rate.Limiter
	logger     logger.Logger
}

func NewHTTPSource(cfg config.ConfigSource, logger logger.Logger) *HTTPSource {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultConfigSource.TimeoutSeconds) * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = config.DefaultConfigSource.PageSize
	}
	cfg.TimeoutSeconds = int(timeout / time.Second)

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &HTTPSource{
		cfg: cfg,
		httpClient: &fasthttp.Client{
			MaxIdleConnDuration: 90 * time.Second,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxConnsPerHost:     100,
		},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

func (s *HTTPSource) FetchRecords(ctx context.Context, projectKey string, since time.Time,
	startAt int) (*RecordPage, error) {
	query := url.Values{}
	if !since.IsZero() {
		query.Set("updatedAfter", since.UTC().Format(time.RFC3339))
	}
	query.Set("startAt", strconv.Itoa(startAt))
	query.Set("maxResults", strconv.Itoa(s.cfg.PageSize))

	uri := fmt.Sprintf("%s%s?%s", strings.TrimRight(s.cfg.BaseURL, "/"),
		fmt.Sprintf(apiProjectRecordsFmt, url.PathEscape(projectKey)), query.Encode())

	body, err := s.get(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records of %s: %w", projectKey, err)
	}

	page, err := parseRecordPage(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse records of %s: %w", projectKey, err)
	}
	page.StartAt = startAt

	s.logger.Debug("fetched %d records of %s starting at %d, total %d", len(page.Records), projectKey, startAt, page.Total)
	return page, nil
}

func (s *HTTPSource) ListProjectKeys(ctx context.Context) ([]string, error) {
	body, err := s.get(ctx, strings.TrimRight(s.cfg.BaseURL, "/")+apiListProjects)
	if err != nil {
		return nil, fmt.Errorf("failed to list remote projects: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json response")
	}

	var keys []string
	gjson.GetBytes(body, "projects.#.key").ForEach(func(_, value gjson.Result) bool {
		if key := value.String(); key != "" {
			keys = append(keys, key)
		}
		return true
	})
	return keys, nil
}

// get waits for the limiter, then sends a GET request. fasthttp has no
// context support so ctx is only checked around the call.
func (s *HTTPSource) get(ctx context.Context, uri string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetContentType("application/json")
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	timeout := time.Duration(s.cfg.TimeoutSeconds) * time.Second
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	if err := s.httpClient.DoTimeout(req, resp, timeout); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d, response: %s", resp.StatusCode(), string(resp.Body()))
	}

	// resp is released on return
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

func parseRecordPage(body []byte) (*RecordPage, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid json response")
	}

	result := gjson.ParseBytes(body)
	page := &RecordPage{Total: int(result.Get("total").Int())}

	var parseErr error
	result.Get("records").ForEach(func(_, item gjson.Result) bool {
		record := Record{
			ID:    item.Get("id").String(),
			Title: item.Get("title").String(),
			Body:  item.Get("body").String(),
		}
		if record.ID == "" {
			parseErr = fmt.Errorf("record without id")
			return false
		}
		if updated := item.Get("updated").String(); updated != "" {
			ts, err := time.Parse(time.RFC3339, updated)
			if err != nil {
				parseErr = fmt.Errorf("record %s has invalid updated time %q: %w", record.ID, updated, err)
				return false
			}
			record.Updated = ts
		}
		page.Records = append(page.Records, record)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return page, nil
}
