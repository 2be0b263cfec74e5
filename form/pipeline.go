// Package form runs the registration pipeline: it binds submit handlers to
// the forms on the page, collects and checks the fields, and appends accepted
// registrations to storage, reporting every outcome to a notifier.
package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/ongspa/dom"
	"github.com/hazyhaar/ongspa/idgen"
	"github.com/hazyhaar/ongspa/notify"
)

// User-facing messages.
const (
	MsgSuccess    = "Cadastro enviado com sucesso!"
	MsgSaveFailed = "Não foi possível salvar o cadastro. Tente novamente."
	ModalTitle    = "Cadastro recebido"
	ModalBody     = "Obrigado por se cadastrar! Sua participação é muito importante."
)

// ErrNoStore is returned by Process when the pipeline has nowhere to persist.
var ErrNoStore = errors.New("form: no record store")

// State is the lifecycle position of one form.
type State int

const (
	Idle State = iota
	Collecting
	Validating
	Rejected
	Accepted
	Persisted
)

func (s State) String() string {
	switch s {
	case Collecting:
		return "collecting"
	case Validating:
		return "validating"
	case Rejected:
		return "rejected"
	case Accepted:
		return "accepted"
	case Persisted:
		return "persisted"
	}
	return "idle"
}

// Appender persists a record.
type Appender interface {
	Append(ctx context.Context, rec Record) error
}

// Surface is what the pipeline needs from the page.
type Surface interface {
	Forms() []*html.Node
	FormValues(form *html.Node) []dom.Field
	ResetForm(form *html.Node)
	Bind(node *html.Node, typ dom.EventType, key string, fn dom.Listener) bool
}

// TransitionFunc observes state changes of a form.
type TransitionFunc func(form *html.Node, from, to State)

// Pipeline validates and stores registrations. Forms share nothing but the
// record store.
type Pipeline struct {
	records  Appender
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
	ids      *idgen.Sequence
	minAge   int
	observe  TransitionFunc

	mu     sync.Mutex
	states map[*html.Node]State
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock sets the clock used for ages, ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithMinAge overrides DefaultMinAge.
func WithMinAge(years int) Option {
	return func(p *Pipeline) { p.minAge = years }
}

// WithTransitions registers an observer for form state changes.
func WithTransitions(fn TransitionFunc) Option {
	return func(p *Pipeline) { p.observe = fn }
}

// New creates a Pipeline appending to records and reporting to notifier.
func New(records Appender, notifier notify.Notifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		records:  records,
		notifier: notifier,
		logger:   slog.Default(),
		now:      time.Now,
		minAge:   DefaultMinAge,
		states:   make(map[*html.Node]State),
	}
	for _, o := range opts {
		o(p)
	}
	if p.notifier == nil {
		p.notifier = notify.NewLog(p.logger)
	}
	p.ids = idgen.NewSequence(p.now)
	return p
}

const bindKey = "pipeline"

// Attach binds the submit handler to every form on s. Forms already bound
// keep a single handler. Returns how many forms were newly bound.
func (p *Pipeline) Attach(ctx context.Context, s Surface) int {
	added := 0
	for _, f := range s.Forms() {
		form := f
		if s.Bind(form, dom.Submit, bindKey, func(ev *dom.Event) {
			p.handleSubmit(ctx, s, form, ev)
		}) {
			added++
		}
	}
	if added > 0 {
		p.logger.Debug("form: attached", "forms", added)
	}
	return added
}

// State returns the current state of form.
func (p *Pipeline) State(form *html.Node) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states[form]
}

func (p *Pipeline) handleSubmit(ctx context.Context, s Surface, form *html.Node, ev *dom.Event) {
	ev.PreventDefault()

	p.transition(form, Collecting)
	fields := Collect(s.FormValues(form))

	if _, err := p.submit(ctx, form, fields); err == nil {
		s.ResetForm(form)
	}
	p.transition(form, Idle)
}

// Process checks fields and, when every check passes, stores a new record.
// Rejections return a *ValidationError after the aggregated message has been
// sent to the notifier.
func (p *Pipeline) Process(ctx context.Context, fields map[string]string) (*Record, error) {
	return p.submit(ctx, nil, fields)
}

func (p *Pipeline) submit(ctx context.Context, form *html.Node, fields map[string]string) (*Record, error) {
	p.transition(form, Validating)
	now := p.now()

	if errs := Check(fields, p.minAge, now); len(errs) > 0 {
		verr := &ValidationError{Messages: errs}
		p.transition(form, Rejected)
		p.notifier.Notify(verr.Error(), notify.Error)
		p.logger.Info("form: rejected", "errors", len(errs))
		return nil, verr
	}
	p.transition(form, Accepted)

	if p.records == nil {
		p.notifier.Notify(MsgSaveFailed, notify.Error)
		return nil, ErrNoStore
	}

	rec := Record{
		ID:        p.ids.Next(),
		Fields:    maps.Clone(fields),
		CreatedAt: now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if err := p.records.Append(ctx, rec); err != nil {
		p.logger.Error("form: persist failed", "id", rec.ID, "error", err)
		p.notifier.Notify(MsgSaveFailed, notify.Error)
		return nil, fmt.Errorf("form: persist: %w", err)
	}
	p.transition(form, Persisted)
	p.logger.Info("form: persisted", "id", rec.ID)

	p.notifier.Notify(MsgSuccess, notify.Info)
	if d, ok := p.notifier.(notify.Dialog); ok {
		d.ShowModal(ModalTitle, ModalBody)
	}
	return &rec, nil
}

// transition records a state change for form. A nil form (Process called
// without a page) has no state.
func (p *Pipeline) transition(form *html.Node, to State) {
	if form == nil {
		return
	}
	p.mu.Lock()
	from := p.states[form]
	if to == Idle {
		delete(p.states, form)
	} else {
		p.states[form] = to
	}
	p.mu.Unlock()

	p.logger.Debug("form: state", "from", from.String(), "to", to.String())
	if p.observe != nil {
		p.observe(form, from, to)
	}
}
