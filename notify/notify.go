// Package notify carries user-visible outcomes (success notices, aggregated
// validation errors) from the form pipeline to whatever presents them.
package notify

import (
	"log/slog"
	"sync"
)

// Kind classifies a notice.
type Kind int

const (
	Info Kind = iota
	Error
)

func (k Kind) String() string {
	if k == Error {
		return "error"
	}
	return "info"
}

// Notifier receives human-readable notices.
type Notifier interface {
	Notify(message string, kind Kind)
}

// Dialog is implemented by notifiers that can also raise a modal.
type Dialog interface {
	ShowModal(title, body string)
}

// Func adapts a function to Notifier.
type Func func(message string, kind Kind)

func (f Func) Notify(message string, kind Kind) { f(message, kind) }

// Log writes notices to a structured logger.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a Log notifier. nil means slog.Default().
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(message string, kind Kind) {
	if kind == Error {
		l.logger.Warn("notify: error", "message", message)
		return
	}
	l.logger.Info("notify: info", "message", message)
}

func (l *Log) ShowModal(title, body string) {
	l.logger.Info("notify: modal", "title", title, "body", body)
}

// Notice is one recorded notification.
type Notice struct {
	Message string `json:"message"`
	Kind    string `json:"kind"`
}

// Modal is one recorded dialog.
type Modal struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Recorder keeps every notice and modal in memory. The CLI prints them and
// tests assert on them.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
	modals  []Modal
}

func (r *Recorder) Notify(message string, kind Kind) {
	r.mu.Lock()
	r.notices = append(r.notices, Notice{Message: message, Kind: kind.String()})
	r.mu.Unlock()
}

func (r *Recorder) ShowModal(title, body string) {
	r.mu.Lock()
	r.modals = append(r.modals, Modal{Title: title, Body: body})
	r.mu.Unlock()
}

// Notices returns a copy of the recorded notices.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Modals returns a copy of the recorded modals.
func (r *Recorder) Modals() []Modal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Modal(nil), r.modals...)
}

// Drain returns the recorded notices and forgets them.
func (r *Recorder) Drain() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.notices
	r.notices = nil
	return out
}

// Multi fans a notice out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(message string, kind Kind) {
	for _, n := range m {
		n.Notify(message, kind)
	}
}

// ShowModal forwards to the members that implement Dialog.
func (m Multi) ShowModal(title, body string) {
	for _, n := range m {
		if d, ok := n.(Dialog); ok {
			d.ShowModal(title, body)
		}
	}
}
