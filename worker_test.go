package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestShouldUseTempFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.mkv")
	existing := filepath.Join(dir, "existing.mkv")
	for _, p := range []string{in, existing} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name           string
		output         string
		deleteIfExists bool
		want           bool
	}{
		{"same path", in, false, true},
		{"new output", filepath.Join(dir, "new.mkv"), true, false},
		{"existing output kept", existing, false, false},
		{"existing output replaced", existing, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ShouldUseTempFile(&Job{Path: in, OutputPath: tt.output}, tt.deleteIfExists)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWorkerInfoCopiesJob(t *testing.T) {
	w := NewWorker(3, discardLogger(), nil, nil)
	job := Job{ID: 7, Path: "in.mkv"}
	w.workerInfo.Job = &job

	info := w.GetInfo()
	info.Job.Path = "changed"

	if job.Path != "in.mkv" {
		t.Errorf("GetInfo shared the job: got %q", job.Path)
	}
	if info.ID != 3 {
		t.Errorf("id: got %d, want 3", info.ID)
	}
}
