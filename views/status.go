package views

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

type JobRow struct {
	ID         int64
	Path       string
	OutputPath string
}

type WorkerRow struct {
	ID       int
	Active   bool
	Step     string
	Progress float64
	JobPath  string
}

type writer struct {
	w   io.Writer
	err error
}

func (w *writer) printf(format string, args ...any) {
	if w.err != nil {
		return
	}
	_, w.err = fmt.Fprintf(w.w, format, args...)
}

// Status renders the queue and worker overview page.
func Status(jobs []JobRow, workers []WorkerRow) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.printf("<!doctype html><html><head><title>mflowinter</title></head><body>")

		w.printf("<h1>Workers</h1><table><tr><th>id</th><th>step</th><th>progress</th><th>job</th></tr>")
		for _, wk := range workers {
			step := "idle"
			if wk.Active {
				step = wk.Step
			}
			w.printf("<tr><td>%d</td><td>%s</td><td>%.1f%%</td><td>%s</td></tr>",
				wk.ID, templ.EscapeString(step), wk.Progress, templ.EscapeString(wk.JobPath))
		}
		w.printf("</table>")

		w.printf("<h1>Queue (%d)</h1><table><tr><th>id</th><th>input</th><th>output</th></tr>", len(jobs))
		for _, j := range jobs {
			w.printf("<tr><td>%d</td><td>%s</td><td>%s</td></tr>",
				j.ID, templ.EscapeString(j.Path), templ.EscapeString(j.OutputPath))
		}
		w.printf("</table></body></html>")

		return w.err
	})
}
