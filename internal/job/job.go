// Package job owns the lifecycle of a document processing run: the job
// state machine, the job store, and the orchestrator that fans citation
// resolution out over a bounded worker pool.
//
// A Job's state is mutated only by its orchestrator; every other party
// reads through Snapshot, which never blocks a writer for longer than the
// copy takes.
package job

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"doifind/internal/citation"
	"doifind/internal/resolve"
)

// State is a job's position in the uploaded → processing → completed|error
// machine. Completed and error are terminal.
type State string

const (
	StateUploaded   State = "uploaded"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Terminal reports whether the state can never be left again.
func (s State) Terminal() bool { return s == StateCompleted || s == StateError }

// Job is one document's processing run. Exported fields are fixed at
// creation; everything mutable is guarded by mu and reached through
// methods.
type Job struct {
	ID        string
	Filename  string
	FilePath  string
	Style     citation.Style
	CreatedAt time.Time

	mu           sync.RWMutex
	state        State
	progress     int
	errMsg       string
	citations    []citation.Citation
	artifactPath string
}

// New creates a job in the uploaded state over an already-split citation
// list. Citation order is document order and never changes afterwards.
func New(filename, filePath string, style citation.Style, citations []citation.Citation) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Filename:  filename,
		FilePath:  filePath,
		Style:     style,
		CreatedAt: time.Now().UTC(),
		state:     StateUploaded,
		citations: citations,
	}
}

// Snapshot is a consistent, serializable copy of a job's mutable state.
type Snapshot struct {
	ID        string              `json:"id"`
	Filename  string              `json:"filename"`
	Status    State               `json:"status"`
	Progress  int                 `json:"progress"`
	Citations []citation.Citation `json:"citations"`
	Error     string              `json:"error,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// Snapshot returns the latest committed state. It copies the citation
// slice so callers can serialize without racing the orchestrator.
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	cits := make([]citation.Citation, len(j.citations))
	copy(cits, j.citations)

	return Snapshot{
		ID:        j.ID,
		Filename:  j.Filename,
		Status:    j.state,
		Progress:  j.progress,
		Citations: cits,
		Error:     j.errMsg,
		CreatedAt: j.CreatedAt,
	}
}

// Stats recomputes the derived citation counts.
func (j *Job) Stats() citation.Stats {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return citation.Tally(j.citations)
}

// State returns the current state.
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// SetArtifact records the path of the latest apply output.
func (j *Job) SetArtifact(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.artifactPath = path
}

// Artifact returns the path of the latest apply output, or "".
func (j *Job) Artifact() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.artifactPath
}

// begin moves the job into processing. No-op once terminal.
func (j *Job) begin() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.state.Terminal() {
		j.state = StateProcessing
	}
}

// record commits one citation's resolution outcome and the resulting
// progress. Progress is monotonically non-decreasing: resolved is the
// running count supplied by the single-writer loop.
func (j *Job) record(out resolve.Outcome, resolved, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for i := range j.citations {
		if j.citations[i].ID != out.ID {
			continue
		}
		// Each citation is written exactly once.
		if j.citations[i].Status.Terminal() && j.citations[i].Status != citation.StatusHasDOI {
			break
		}
		j.citations[i].Status = out.Status
		j.citations[i].DOI = out.DOI
		j.citations[i].Confidence = out.Confidence
		j.citations[i].Source = out.Source
		break
	}

	if total > 0 {
		if p := (100*resolved + total/2) / total; p > j.progress {
			j.progress = p
		}
	}
}

// closePending marks every still-pending citation not_found. Used when the
// processing budget expires: the job completes with whatever was resolved.
func (j *Job) closePending() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := range j.citations {
		if !j.citations[i].Status.Terminal() {
			j.citations[i].Status = citation.StatusNotFound
			j.citations[i].Confidence = 0
		}
	}
}

// complete moves the job to the completed terminal state. Progress is only
// forced to 100 when every citation actually resolved in time.
func (j *Job) complete(allResolved bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = StateCompleted
	if allResolved {
		j.progress = 100
	}
}

// fail moves the job to the error terminal state with a message. Partial
// citation outcomes stay visible for diagnostics.
func (j *Job) fail(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = StateError
	j.errMsg = msg
}
