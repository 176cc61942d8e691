package progrock

import (
	"fmt"

	"github.com/vito/progrock"
)

// Task implements ports.ProgressTask wrapping *progrock.VertexRecorder.
type Task struct {
	vertex *progrock.VertexRecorder
}

// Log appends a line to the vertex output.
func (t *Task) Log(msg string) {
	_, _ = fmt.Fprintln(t.vertex.Stdout(), msg)
}

// Cached marks the vertex as satisfied without work.
func (t *Task) Cached() {
	t.vertex.Cached()
}

// Complete marks the vertex as finished, failed when err is non-nil.
func (t *Task) Complete(err error) {
	t.vertex.Done(err)
}
