package views

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStatusEscapes(t *testing.T) {
	var buf bytes.Buffer
	err := Status(
		[]JobRow{{ID: 1, Path: "<script>.mkv", OutputPath: "out.mkv"}},
		[]WorkerRow{{ID: 0, Active: true, Step: "Interpolating frames", Progress: 12.5, JobPath: "a&b.mkv"}},
	).Render(context.Background(), &buf)
	if err != nil {
		t.Fatal(err)
	}

	body := buf.String()
	if strings.Contains(body, "<script>") {
		t.Error("job path was not escaped")
	}
	for _, want := range []string{"&lt;script&gt;.mkv", "a&amp;b.mkv", "12.5%", "Queue (1)"} {
		if !strings.Contains(body, want) {
			t.Errorf("body is missing %q", want)
		}
	}
}

func TestRendererRejectsNonComponent(t *testing.T) {
	r := (&HTMLTemplRenderer{}).Instance("page", 42)
	w := httptest.NewRecorder()
	if err := r.Render(w); err == nil {
		t.Error("expected an error for a non component")
	}
	if got := w.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Errorf("content type: got %q", got)
	}
}
