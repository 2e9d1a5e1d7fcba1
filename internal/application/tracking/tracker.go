// Package tracking follows technologies through backend readiness.  Each
// tracked technology is polled in its own goroutine until its readiness is
// terminal; the payloads of ready technologies form the snapshot that
// comparisons run over.
package tracking

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/turtacn/TechIntel/internal/domain/payload"
	"github.com/turtacn/TechIntel/internal/domain/readiness"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/TechIntel/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/TechIntel/pkg/client"
	pkgerrors "github.com/turtacn/TechIntel/pkg/errors"
)

// DefaultPollInterval is the status poll period.
const DefaultPollInterval = 5 * time.Second

var (
	ErrNotTracked    = pkgerrors.New(pkgerrors.ErrCodeTechnologyNotTracked, "technology is not tracked")
	ErrNotReady      = pkgerrors.New(pkgerrors.ErrCodeTechnologyNotReady, "technology is not ready")
	ErrTrackerClosed = pkgerrors.New(pkgerrors.ErrCodeTrackerClosed, "tracker closed")
	ErrEmptyName     = pkgerrors.New(pkgerrors.ErrCodeValidation, "technology name is empty")
)

// Backend is the part of the analytics backend the tracker talks to.
// *client.Client implements it.
type Backend interface {
	FetchTechnology(ctx context.Context, tech string) ([]byte, error)
	TechnologyStatus(ctx context.Context, tech string) (*client.StatusResponse, error)
}

// Guard serializes technology creation across replicas.  The redis Guard
// implements it.
type Guard interface {
	Acquire(ctx context.Context, name string) (release func(), err error)
}

// Archiver keeps a copy of every payload that becomes ready.  The minio
// PayloadStore implements it.
type Archiver interface {
	Save(ctx context.Context, tech string, p payload.Payload) error
}

// Transition is one readiness change.
type Transition struct {
	Technology string
	From       readiness.State
	To         readiness.State
	At         time.Time
}

// Status is the externally visible state of one tracked technology.
type Status struct {
	Technology string          `json:"technology"`
	State      readiness.State `json:"state"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Stale      bool            `json:"stale"`
	Error      string          `json:"error,omitempty"`
}

// Options tunes a Tracker.  Zero values select defaults.
type Options struct {
	PollInterval    time.Duration
	CreateIfMissing bool
	StaleAfter      time.Duration

	Guard     Guard
	Archiver  Archiver
	Publisher EventPublisher
	Metrics   *prometheus.AppMetrics

	// OnTransition is called, outside any lock, for every state change.
	OnTransition func(Transition)
}

type entry struct {
	state     readiness.State
	payload   payload.Payload
	updatedAt time.Time
	lastErr   error
	cancel    context.CancelFunc
	wake      chan struct{}
	done      chan struct{}
}

// Tracker owns the readiness of every tracked technology.
type Tracker struct {
	backend Backend
	opts    Options
	logger  logging.Logger
	metrics *prometheus.AppMetrics
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTracker creates a tracker polling backend.
func NewTracker(backend Backend, opts Options, log logging.Logger) *Tracker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = payload.DefaultMaxAge
	}
	if opts.Metrics == nil {
		opts.Metrics = prometheus.NewNopAppMetrics()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Tracker{
		backend: backend,
		opts:    opts,
		logger:  log.Named("tracker"),
		metrics: opts.Metrics,
		now:     time.Now,
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Track starts following tech.  Tracking an already tracked technology
// returns its current state and starts nothing.
func (t *Tracker) Track(tech string) (readiness.State, error) {
	tech = strings.TrimSpace(tech)
	if tech == "" {
		return readiness.Unstarted, ErrEmptyName
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return readiness.Unstarted, ErrTrackerClosed
	}
	if e, ok := t.entries[tech]; ok {
		state := e.state
		t.mu.Unlock()
		return state, nil
	}
	ctx, cancel := context.WithCancel(t.ctx)
	e := &entry{
		state:     readiness.Unstarted,
		updatedAt: t.now(),
		cancel:    cancel,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	t.entries[tech] = e
	t.order = append(t.order, tech)
	t.wg.Add(1)
	t.mu.Unlock()

	t.metrics.TrackedTechnologies.WithLabelValues(readiness.Unstarted.String()).Inc()
	t.logger.Info("Tracking technology", logging.String("technology", tech))
	go t.run(ctx, tech, e)
	return readiness.Unstarted, nil
}

// Remove stops following tech and forgets its state.
func (t *Tracker) Remove(tech string) error {
	t.mu.Lock()
	e, ok := t.entries[tech]
	if !ok {
		t.mu.Unlock()
		return ErrNotTracked.WithDetail(tech)
	}
	delete(t.entries, tech)
	for i, name := range t.order {
		if name == tech {
			t.order = append(t.order[:i:i], t.order[i+1:]...)
			break
		}
	}
	state := e.state
	t.mu.Unlock()

	e.cancel()
	t.metrics.TrackedTechnologies.WithLabelValues(state.String()).Dec()
	t.logger.Info("Stopped tracking technology", logging.String("technology", tech))
	return nil
}

// State returns the status of tech.
func (t *Tracker) State(tech string) (Status, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[tech]
	if !ok {
		return Status{}, ErrNotTracked.WithDetail(tech)
	}
	return t.statusLocked(tech, e), nil
}

// List returns the status of every tracked technology in tracking order.
func (t *Tracker) List() []Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Status, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.statusLocked(name, t.entries[name]))
	}
	return out
}

func (t *Tracker) statusLocked(tech string, e *entry) Status {
	s := Status{Technology: tech, State: e.state, UpdatedAt: e.updatedAt}
	if e.state == readiness.Ready {
		s.Stale = e.payload.Stale(t.now(), t.opts.StaleAfter)
	}
	if e.lastErr != nil {
		s.Error = e.lastErr.Error()
	}
	return s
}

// Snapshot returns the payloads of names in the order given, or of every
// ready technology in tracking order when names is empty.  A named
// technology that is untracked or not ready is skipped and recorded on the
// snapshot; only a request where no name is ready is an error.
func (t *Tracker) Snapshot(names ...string) (payload.Snapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(names) == 0 {
		snap := payload.Snapshot{}
		for _, name := range t.order {
			if e := t.entries[name]; e.state == readiness.Ready {
				snap = snap.With(name, e.payload)
			}
		}
		return snap, nil
	}

	loaded := make([]payload.Payload, len(names))
	errs := make([]error, len(names))
	for i, name := range names {
		e, ok := t.entries[name]
		switch {
		case !ok:
			errs[i] = ErrNotTracked.WithDetail(name)
		case e.state != readiness.Ready:
			errs[i] = ErrNotReady.WithDetail(name + " is " + e.state.String())
		default:
			loaded[i] = e.payload
		}
	}
	return payload.Collect(names, loaded, errs)
}

// Wait blocks until tech reaches a terminal state or ctx ends.
func (t *Tracker) Wait(ctx context.Context, tech string) (readiness.State, error) {
	t.mu.RLock()
	e, ok := t.entries[tech]
	t.mu.RUnlock()
	if !ok {
		return readiness.Unstarted, ErrNotTracked.WithDetail(tech)
	}

	select {
	case <-e.done:
		t.mu.RLock()
		defer t.mu.RUnlock()
		return e.state, nil
	case <-ctx.Done():
		return readiness.Unstarted, ctx.Err()
	}
}

// Poll asks the loop of tech to poll now instead of at the next tick.
// It reports whether tech is tracked and still polling.
func (t *Tracker) Poll(tech string) bool {
	t.mu.RLock()
	e, ok := t.entries[tech]
	t.mu.RUnlock()
	if !ok || e.state.Terminal() {
		return false
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return true
}

// Close stops every poll loop and waits for them to exit.
func (t *Tracker) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	t.wg.Wait()
	t.logger.Info("Tracker closed")
	return nil
}

// run drives one technology: an initial fetch, then status polls every
// PollInterval until the state is terminal.
func (t *Tracker) run(ctx context.Context, tech string, e *entry) {
	defer t.wg.Done()
	defer close(e.done)

	if t.apply(ctx, tech, e, t.initial(ctx, tech)) {
		return
	}

	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-e.wake:
		}
		if t.apply(ctx, tech, e, t.poll(ctx, tech)) {
			return
		}
	}
}

// initial performs the first observation.  With CreateIfMissing the
// technology is fetched, and created on 404, under the creation guard.
func (t *Tracker) initial(ctx context.Context, tech string) readiness.Observation {
	if !t.opts.CreateIfMissing {
		return t.poll(ctx, tech)
	}

	if t.opts.Guard != nil {
		release, err := t.opts.Guard.Acquire(ctx, "create:"+strings.ToLower(tech))
		switch {
		case err == nil:
			defer release()
		case pkgerrors.IsCode(err, pkgerrors.ErrCodeConflict):
			t.logger.Debug("Creation in progress elsewhere, polling", logging.String("technology", tech))
			return t.poll(ctx, tech)
		default:
			t.logger.Warn("Creation guard unavailable", logging.String("technology", tech), logging.Err(err))
		}
	}

	body, err := t.backend.FetchTechnology(ctx, tech)
	return observationFromFetch(body, err)
}

func (t *Tracker) poll(ctx context.Context, tech string) readiness.Observation {
	resp, err := t.backend.TechnologyStatus(ctx, tech)
	if err != nil {
		return readiness.Observation{Err: err}
	}
	return readiness.Observation{StatusCode: resp.StatusCode, Body: resp.Body}
}

func observationFromFetch(body []byte, err error) readiness.Observation {
	if err == nil {
		return readiness.Observation{StatusCode: http.StatusOK, Body: body}
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return readiness.Observation{StatusCode: apiErr.StatusCode}
	}
	return readiness.Observation{Err: err}
}

// apply folds o into the state of tech and reports whether polling is
// over.  Observations made after cancellation or removal are discarded.
func (t *Tracker) apply(ctx context.Context, tech string, e *entry, o readiness.Observation) bool {
	if ctx.Err() != nil {
		return true
	}

	t.mu.Lock()
	if t.entries[tech] != e {
		t.mu.Unlock()
		return true
	}
	from := e.state
	to := readiness.Next(from, o)
	e.lastErr = o.Err
	if to == readiness.Ready {
		p, err := payload.Decode(o.Body)
		if err == nil {
			e.payload = p
		}
	}
	if to != from {
		e.state = to
		e.updatedAt = t.now()
	}
	at := e.updatedAt
	p := e.payload
	t.mu.Unlock()

	t.metrics.TrackerPollsTotal.WithLabelValues(to.String()).Inc()
	if o.Err != nil {
		t.logger.Warn("Status poll failed", logging.String("technology", tech), logging.Err(o.Err))
	}
	if to != from {
		t.transitioned(ctx, Transition{Technology: tech, From: from, To: to, At: at}, p)
	}
	return to.Terminal()
}

func (t *Tracker) transitioned(ctx context.Context, tr Transition, p payload.Payload) {
	prometheus.RecordTransition(t.metrics, tr.From.String(), tr.To.String())
	t.logger.Info("Readiness changed",
		logging.String("technology", tr.Technology),
		logging.String("from", tr.From.String()),
		logging.String("to", tr.To.String()))

	if t.opts.Publisher != nil {
		if err := publishTransition(ctx, t.opts.Publisher, tr); err != nil {
			t.logger.Error("Failed to publish readiness change", logging.String("technology", tr.Technology), logging.Err(err))
			prometheus.RecordError(t.metrics, "tracker", string(pkgerrors.ErrCodeMessageQueueError))
		}
	}
	if tr.To == readiness.Ready && t.opts.Archiver != nil && !p.IsZero() {
		if err := t.opts.Archiver.Save(ctx, tr.Technology, p); err != nil {
			t.logger.Warn("Failed to archive payload", logging.String("technology", tr.Technology), logging.Err(err))
		}
	}
	if t.opts.OnTransition != nil {
		t.opts.OnTransition(tr)
	}
}
