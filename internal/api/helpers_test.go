package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/heimdex/mlt2fcpx/internal/artifact"
	"github.com/heimdex/mlt2fcpx/internal/convert"
	"github.com/heimdex/mlt2fcpx/internal/history"
)

const testToken = "test-token-0123456789"

type fakeRepository struct {
	mu          sync.Mutex
	conversions map[string]*history.Conversion
	config      map[string]string
	listErr     error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		conversions: make(map[string]*history.Conversion),
		config:      map[string]string{AuthTokenKey: testToken},
	}
}

func (f *fakeRepository) CreateConversion(_ context.Context, c *history.Conversion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.conversions[c.ID] = &cp
	return nil
}

func (f *fakeRepository) GetConversion(_ context.Context, id string) (*history.Conversion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversions[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeRepository) ListConversions(_ context.Context, limit int) ([]*history.Conversion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*history.Conversion
	for _, c := range f.conversions {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepository) FinishConversion(ctx context.Context, c *history.Conversion) error {
	return f.CreateConversion(ctx, c)
}

func (f *fakeRepository) CountConversions(_ context.Context, status string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.conversions {
		if status == "" || c.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepository) GetConfig(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config[key], nil
}

func (f *fakeRepository) SetConfig(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config[key] = value
	return nil
}

type fakeConverter struct {
	mu   sync.Mutex
	reqs []convert.Request
	res  *convert.Result
	err  error
}

func (f *fakeConverter) Convert(_ context.Context, req convert.Request) (*convert.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	res := *f.res
	res.InputPath = req.InputPath
	res.OutputPath = req.OutputPath
	res.Format = req.Format
	return &res, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(conv Converter, repo *fakeRepository) ServerConfig {
	logger := testLogger()
	return ServerConfig{
		Converter:  conv,
		Repository: repo,
		Artifacts:  artifact.NewServer(logger),
		Logger:     logger,
		StartTime:  time.Now(),
		Version:    "test",
	}
}

func authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body %q: %v", rr.Body.String(), err)
	}
	return body
}
