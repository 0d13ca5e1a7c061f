package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/heimdex/mlt2fcpx/internal/history"
)

func seed(repo *fakeRepository, convs ...*history.Conversion) {
	for _, c := range convs {
		repo.conversions[c.ID] = c
	}
}

func TestHealthHandler(t *testing.T) {
	repo := newFakeRepository()
	seed(repo,
		&history.Conversion{ID: "a", Status: history.StatusCompleted},
		&history.Conversion{ID: "b", Status: history.StatusCompleted},
		&history.Conversion{ID: "c", Status: history.StatusFailed},
	)
	router := NewRouter(testConfig(&fakeConverter{}, repo))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
	counts, ok := body["conversions"].(map[string]any)
	if !ok {
		t.Fatalf("conversions = %v, want per-status counts", body["conversions"])
	}
	want := map[string]float64{"running": 0, "completed": 2, "failed": 1}
	for status, n := range want {
		if counts[status] != n {
			t.Errorf("conversions[%s] = %v, want %v", status, counts[status], n)
		}
	}
}

func TestListConversions(t *testing.T) {
	repo := newFakeRepository()
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	seed(repo,
		&history.Conversion{ID: "old", Status: history.StatusCompleted, CreatedAt: base},
		&history.Conversion{ID: "new", Status: history.StatusFailed, ErrorCode: "MISSING_PROPERTY", CreatedAt: base.Add(time.Minute)},
	)
	router := NewRouter(testConfig(&fakeConverter{}, repo))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authed(httptest.NewRequest(http.MethodGet, "/conversions?limit=1", nil)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	list, ok := decodeJSONBody(t, rr)["conversions"].([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("conversions = %v", list)
	}
	first := list[0].(map[string]any)
	if first["id"] != "new" || first["error_code"] != "MISSING_PROPERTY" {
		t.Errorf("first = %v", first)
	}
}

func TestListConversions_BadLimit(t *testing.T) {
	router := NewRouter(testConfig(&fakeConverter{}, newFakeRepository()))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authed(httptest.NewRequest(http.MethodGet, "/conversions?limit=-3", nil)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestListConversions_RepositoryError(t *testing.T) {
	repo := newFakeRepository()
	repo.listErr = errors.New("database is locked")
	router := NewRouter(testConfig(&fakeConverter{}, repo))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authed(httptest.NewRequest(http.MethodGet, "/conversions", nil)))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
}

func TestGetConversion_NotFound(t *testing.T) {
	router := NewRouter(testConfig(&fakeConverter{}, newFakeRepository()))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authed(httptest.NewRequest(http.MethodGet, "/conversions/missing", nil)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["code"] != "NOT_FOUND" {
		t.Errorf("code = %v", body["code"])
	}
}

func TestConversionOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "edit.fcpxml")
	if err := os.WriteFile(out, []byte("<fcpxml/>"), 0o644); err != nil {
		t.Fatal(err)
	}

	repo := newFakeRepository()
	seed(repo,
		&history.Conversion{ID: "done", Status: history.StatusCompleted, OutputPath: out},
		&history.Conversion{ID: "failed", Status: history.StatusFailed, OutputPath: out},
		&history.Conversion{ID: "gone", Status: history.StatusCompleted, OutputPath: filepath.Join(dir, "deleted.fcpxml")},
	)
	router := NewRouter(testConfig(&fakeConverter{}, repo))

	tests := []struct {
		id         string
		wantStatus int
		wantCode   string
	}{
		{id: "done", wantStatus: http.StatusOK},
		{id: "failed", wantStatus: http.StatusConflict, wantCode: "NOT_READY"},
		{id: "gone", wantStatus: http.StatusNotFound, wantCode: "OUTPUT_MISSING"},
	}

	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, authed(httptest.NewRequest(http.MethodGet, "/conversions/"+tc.id+"/output", nil)))
			if rr.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tc.wantStatus, rr.Body.String())
			}
			if tc.wantCode != "" {
				if body := decodeJSONBody(t, rr); body["code"] != tc.wantCode {
					t.Errorf("code = %v, want %s", body["code"], tc.wantCode)
				}
				return
			}
			if rr.Body.String() != "<fcpxml/>" {
				t.Errorf("body = %q", rr.Body.String())
			}
		})
	}
}
