package placement

import (
	"sync"
	"time"

	"github.com/kelsiar/fasttravel/internal/game"
)

// ProbeAttempt is one probe of a ground search, kept for diagnostics.
type ProbeAttempt struct {
	Stage    string        `json:"stage"`
	Position game.Position `json:"position"`
	Hit      bool          `json:"hit"`
}

// Trace is the record of one ground search. The prober publishes the trace
// when the search finishes; the debug overlay polls for the most recent one.
type Trace struct {
	Hint     game.Position  `json:"hint"`
	Started  time.Time      `json:"started"`
	Attempts []ProbeAttempt `json:"attempts"`
	Result   *Candidate     `json:"result,omitempty"`
}

func (t *Trace) record(stage string, p game.Position, hit bool) {
	t.Attempts = append(t.Attempts, ProbeAttempt{Stage: stage, Position: p, Hit: hit})
}

type traceRecorder struct {
	mu   sync.Mutex
	last *Trace
}

func (r *traceRecorder) store(t *Trace) {
	r.mu.Lock()
	r.last = t
	r.mu.Unlock()
}

func (r *traceRecorder) lastTrace() (Trace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Trace{}, false
	}

	out := *r.last
	out.Attempts = make([]ProbeAttempt, len(r.last.Attempts))
	copy(out.Attempts, r.last.Attempts)
	if r.last.Result != nil {
		res := *r.last.Result
		out.Result = &res
	}
	return out, true
}
