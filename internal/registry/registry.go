package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reelty/clipper-api/internal/model"
)

// Phase is a job's position in its lifecycle. Transitions are one-directional;
// cancellation may be requested from any non-terminal phase.
type Phase string

const (
	PhaseSubmitted       Phase = "submitted"
	PhaseAwaitingWebhook Phase = "awaiting_webhook"
	PhaseRendering       Phase = "rendering"
	PhaseCompleted       Phase = "completed"
	PhaseFailed          Phase = "failed"
	PhaseCancelled       Phase = "cancelled"
	PhaseTimedOut        Phase = "timed_out"
)

var phaseRank = map[Phase]int{
	PhaseSubmitted:       0,
	PhaseAwaitingWebhook: 1,
	PhaseRendering:       2,
	PhaseCompleted:       3,
	PhaseFailed:          3,
	PhaseCancelled:       3,
	PhaseTimedOut:        3,
}

// Terminal reports whether p ends the job's lifecycle
func (p Phase) Terminal() bool { return phaseRank[p] == 3 }

var ErrDuplicateJob = errors.New("job already registered")

// Job is one in-flight clip generation request. Owned by the Registry; the
// webhook ingress resolves its result slot exactly once, the waiter consumes
// it exactly once, and the cancellation controller may wake the waiter early.
type Job struct {
	ID             string
	Request        model.GenerateRequest
	Template       *model.Template
	SourceDuration float64
	CreatedAt      time.Time

	mu    sync.Mutex
	phase Phase

	resolved  atomic.Bool
	resultCh  chan json.RawMessage
	cancelled atomic.Bool
	cancelCh  chan struct{}
	cancelOne sync.Once
}

// Phase returns the job's current lifecycle phase
func (j *Job) Phase() Phase {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.phase
}

// SetPhase advances the job's phase. Backward transitions are refused, except
// that cancelled is accepted from any non-terminal phase.
func (j *Job) SetPhase(p Phase) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.phase.Terminal() {
		return false
	}
	if p != PhaseCancelled && phaseRank[p] <= phaseRank[j.phase] {
		return false
	}
	j.phase = p
	return true
}

// Result is the single-consumer channel the pending waiter selects on
func (j *Job) Result() <-chan json.RawMessage { return j.resultCh }

// Done is closed once cancellation has been requested
func (j *Job) Done() <-chan struct{} { return j.cancelCh }

// IsCancelled is the non-blocking checkpoint test used between pipeline stages
func (j *Job) IsCancelled() bool { return j.cancelled.Load() }

func (j *Job) markCancelled() {
	j.cancelled.Store(true)
	j.cancelOne.Do(func() { close(j.cancelCh) })
}

// Registry maps canonical job ids to job state. All mutation happens under the
// registry lock; the per-job result slot and cancellation flag are atomic so
// webhook delivery and checkpoints never contend on it.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func New() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// CanonicalID collapses every representation a provider id arrives in (JSON
// string, JSON number decoded as float64 or json.Number, native ints) to one
// decimal string, so "22510226" and 22510226 address the same job.
func CanonicalID(id interface{}) string {
	switch v := id.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", v))
	}
}

// Create registers a new pending job. Fails if the provider id is already
// active — provider ids must be unique per in-flight job.
func (r *Registry) Create(id interface{}, req model.GenerateRequest, tmpl *model.Template, sourceDuration float64) (*Job, error) {
	key := CanonicalID(id)
	job := &Job{
		ID:             key,
		Request:        req,
		Template:       tmpl,
		SourceDuration: sourceDuration,
		CreatedAt:      time.Now(),
		phase:          PhaseSubmitted,
		resultCh:       make(chan json.RawMessage, 1),
		cancelCh:       make(chan struct{}),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[key]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateJob, key)
	}
	r.jobs[key] = job
	return job, nil
}

// Get looks up a job by any id representation
func (r *Registry) Get(id interface{}) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[CanonicalID(id)]
	return job, ok
}

// Remove retires a job entry. Idempotent.
func (r *Registry) Remove(id interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, CanonicalID(id))
}

// ResolveResult assigns the job's pending-result slot exactly once. Returns
// false when the job is unknown or the slot was already set, which rejects
// duplicate webhook deliveries.
func (r *Registry) ResolveResult(id interface{}, payload json.RawMessage) bool {
	job, ok := r.Get(id)
	if !ok {
		return false
	}
	if !job.resolved.CompareAndSwap(false, true) {
		return false
	}
	job.resultCh <- payload
	return true
}

// Cancel marks a job cancelled and wakes its pending waiter. Returns the job
// so the caller can notify the progress stream, and false when unknown.
func (r *Registry) Cancel(id interface{}) (*Job, bool) {
	job, ok := r.Get(id)
	if !ok {
		return nil, false
	}
	job.markCancelled()
	job.SetPhase(PhaseCancelled)
	return job, true
}

// Len reports the number of active jobs
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
