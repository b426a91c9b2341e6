package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Zelak312/mflowinter/views"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

func newTestServer(t *testing.T) (*server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := newTestSqlite(t)
	queue := NewQueue(nil, nil)
	config := &Config{Workers: 2}
	srv := &server{
		logger:     discardLogger(),
		queue:      queue,
		sqlite:     s,
		poolWorker: NewPoolWorker(context.Background(), discardLogger(), queue, config, s, nil),
	}

	r := gin.New()
	r.HTMLRender = &views.HTMLTemplRenderer{}
	srv.routes(r)
	return srv, r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	_, r := newTestServer(t)
	w := do(r, http.MethodGet, "/ping", "")
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusOK)
	}
}

func TestAddJobToQueue(t *testing.T) {
	srv, r := newTestServer(t)

	w := do(r, http.MethodPost, "/queue", `{"path": "in.mkv", "outputPath": "out.mkv"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing vectorsPath: got %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = do(r, http.MethodPost, "/queue", `{"path": "in.mkv", "vectorsPath": "in.json", "outputPath": "out.mkv"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d: %s", w.Code, http.StatusOK, w.Body)
	}

	var job Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatal(err)
	}
	if job.ID == 0 {
		t.Error("job id not set")
	}

	if got := srv.queue.GetJobs(); len(got) != 1 || got[0].ID != job.ID {
		t.Errorf("queue: got %+v", got)
	}

	w = do(r, http.MethodGet, "/queue", "")
	var listed []Job
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 {
		t.Errorf("GET /queue: got %d jobs, want 1", len(listed))
	}
}

func TestDelJobFromQueue(t *testing.T) {
	_, r := newTestServer(t)

	if w := do(r, http.MethodDelete, "/queue/abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad id: got %d, want %d", w.Code, http.StatusBadRequest)
	}
	if w := do(r, http.MethodDelete, "/queue/42", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown id: got %d, want %d", w.Code, http.StatusNotFound)
	}

	w := do(r, http.MethodPost, "/queue", `{"path": "in.mkv", "vectorsPath": "in.json", "outputPath": "out.mkv"}`)
	var job Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatal(err)
	}

	if w := do(r, http.MethodDelete, "/queue/"+jsonNumber(job.ID), ""); w.Code != http.StatusOK {
		t.Errorf("delete: got %d, want %d", w.Code, http.StatusOK)
	}
}

func jsonNumber(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

func TestListWorkersAndStatusPage(t *testing.T) {
	_, r := newTestServer(t)

	w := do(r, http.MethodGet, "/workers", "")
	var infos []WorkerInfo
	if err := json.Unmarshal(w.Body.Bytes(), &infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Errorf("workers: got %d, want 2", len(infos))
	}

	w = do(r, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status page: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<h1>Workers</h1>") {
		t.Errorf("status page body: %s", w.Body)
	}

	w = do(r, http.MethodGet, "/failed", "")
	if w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("failed: got %d %q", w.Code, w.Body)
	}
}
