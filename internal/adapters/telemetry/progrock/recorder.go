// Package progrock records per-artifact install progress with Progrock.
package progrock

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.trai.ch/hearth/internal/core/domain"
	"go.trai.ch/hearth/internal/core/ports"
	"go.trai.ch/zerr"
)

var (
	errJournalCreate = zerr.New("failed to create progress journal")
	errJournalRead   = zerr.New("failed to read progress journal")
)

// Recorder implements ports.Progress on a Progrock tape.
// While a recording is open, every status update is also appended to its journal.
type Recorder struct {
	mu      sync.Mutex
	tape    *progrock.Tape
	journal progrock.Writer
	rec     *progrock.Recorder
}

var _ ports.Progress = (*Recorder)(nil)

// New creates a Recorder on an empty tape with no journal.
func New() *Recorder {
	r := &Recorder{tape: progrock.NewTape()}
	r.rec = progrock.NewRecorder(fanout{r})
	return r
}

// Track starts a vertex for one artifact key. Tracking the same key twice continues one vertex.
func (r *Recorder) Track(key string) ports.ProgressTask {
	r.mu.Lock()
	rec := r.rec
	r.mu.Unlock()
	return &Task{vertex: rec.Vertex(digest.FromString(key), key)}
}

// Record starts a fresh tape mirrored to a journal at journalPath, replacing any earlier journal.
func (r *Recorder) Record(journalPath string) error {
	journal, err := progrock.CreateJournal(journalPath)
	if err != nil {
		return zerr.With(zerr.Wrap(err, errJournalCreate.Error()), "path", journalPath)
	}

	r.mu.Lock()
	previous := r.journal
	r.tape = progrock.NewTape()
	r.journal = journal
	r.mu.Unlock()

	rec := progrock.NewRecorder(fanout{r})
	r.mu.Lock()
	r.rec = rec
	r.mu.Unlock()

	if previous != nil {
		return previous.Close()
	}
	return nil
}

// Finish closes the current journal and summarises the tape.
func (r *Recorder) Finish() (domain.ProgressSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	summary := summarize(r.tape)
	if r.journal == nil {
		return summary, nil
	}
	err := r.journal.Close()
	r.journal = nil
	return summary, err
}

// Replay rebuilds a tape from the journal at journalPath and summarises it.
func (r *Recorder) Replay(journalPath string) (domain.ProgressSummary, bool, error) {
	f, err := os.Open(journalPath) //nolint:gosec // Path is derived from the instance layout
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ProgressSummary{}, false, nil
		}
		return domain.ProgressSummary{}, false, zerr.Wrap(err, errJournalRead.Error())
	}
	defer func() {
		_ = f.Close()
	}()

	tape := progrock.NewTape()
	dec := json.NewDecoder(f)
	for {
		var update progrock.StatusUpdate
		if err := dec.Decode(&update); err != nil {
			// io.EOF, or a torn final line left by a run that crashed.
			break
		}
		if err := tape.WriteStatus(&update); err != nil {
			return domain.ProgressSummary{}, false, zerr.With(zerr.Wrap(err, errJournalRead.Error()), "path", journalPath)
		}
	}
	return summarize(tape), true, nil
}

// Close closes any open journal and the tape.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	if r.journal != nil {
		errs = append(errs, r.journal.Close())
		r.journal = nil
	}
	errs = append(errs, r.tape.Close())
	return errors.Join(errs...)
}

func summarize(tape *progrock.Tape) domain.ProgressSummary {
	return domain.ProgressSummary{
		Tracked:   tape.TotalCount(),
		Completed: tape.CompletedCount(),
		Cached:    tape.CachedCount(),
		Failed:    tape.ErroredCount(),
	}
}

// fanout is the progrock.Writer behind the recorder: the current tape plus the open journal.
type fanout struct {
	r *Recorder
}

func (f fanout) WriteStatus(update *progrock.StatusUpdate) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()

	if err := f.r.tape.WriteStatus(update); err != nil {
		return err
	}
	if f.r.journal != nil {
		return f.r.journal.WriteStatus(update)
	}
	return nil
}

func (f fanout) Close() error {
	return nil
}
