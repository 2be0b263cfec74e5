package dom

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/net/html"
)

// EventType names a UI event.
type EventType string

const (
	Click  EventType = "click"
	Input  EventType = "input"
	Submit EventType = "submit"
)

// ErrNoElement is returned when a selector matches nothing.
var ErrNoElement = errors.New("dom: no element matches selector")

// Event is dispatched to element bindings along the ancestor chain of Target
// (innermost first), then to document-level listeners.
type Event struct {
	Type   EventType
	Target *html.Node

	prevented bool
}

// PreventDefault suppresses the default action (native navigation or
// native form submission).
func (e *Event) PreventDefault() { e.prevented = true }

// DefaultPrevented reports whether a listener called PreventDefault.
func (e *Event) DefaultPrevented() bool { return e.prevented }

// Listener handles an event.
type Listener func(*Event)

type bindKey struct {
	node *html.Node
	typ  EventType
	key  string
}

type docListener struct {
	typ EventType
	key string
	fn  Listener
}

// Bind attaches fn to node for events of type typ under key. Binding the
// same (node, typ, key) again replaces the listener instead of adding one,
// so re-attach passes are idempotent. It reports whether the binding is new.
func (d *Document) Bind(node *html.Node, typ EventType, key string, fn Listener) bool {
	if node == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	k := bindKey{node: node, typ: typ, key: key}
	_, exists := d.bindings[k]
	if !exists {
		d.order = append(d.order, k)
	}
	d.bindings[k] = fn
	return !exists
}

// AddEventListener subscribes fn to every event of type typ reaching the
// document. Registering the same (typ, key) again replaces the listener.
func (d *Document) AddEventListener(typ EventType, key string, fn Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, l := range d.listeners {
		if l.typ == typ && l.key == key {
			d.listeners[i].fn = fn
			return
		}
	}
	d.listeners = append(d.listeners, docListener{typ: typ, key: key, fn: fn})
}

// Bindings counts live element bindings of type typ.
func (d *Document) Bindings(typ EventType) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, k := range d.order {
		if k.typ == typ {
			n++
		}
	}
	return n
}

// Dispatch delivers ev and reports whether the default action should run.
// Listeners run without the document lock held.
func (d *Document) Dispatch(ev *Event) bool {
	d.mu.Lock()
	var chain []Listener
	for n := ev.Target; n != nil; n = n.Parent {
		for _, k := range d.order {
			if k.node == n && k.typ == ev.Type {
				chain = append(chain, d.bindings[k])
			}
		}
	}
	for _, l := range d.listeners {
		if l.typ == ev.Type {
			chain = append(chain, l.fn)
		}
	}
	d.mu.Unlock()

	for _, fn := range chain {
		fn(ev)
	}
	return !ev.prevented
}

// Click dispatches a click on the first element matching selector and runs
// the default action if nobody prevented it: following a link natively, or
// submitting the enclosing form for a submit button.
func (d *Document) Click(ctx context.Context, selector string) error {
	n := d.QuerySelector(selector)
	if n == nil {
		return ErrNoElement
	}
	if !d.Dispatch(&Event{Type: Click, Target: n}) {
		return nil
	}

	if a := Closest(n, "a"); a != nil {
		href := Attr(a, "href")
		if href == "" || strings.HasPrefix(href, "#") {
			return nil
		}
		d.Assign(ctx, href)
		return nil
	}
	if isSubmitter(n) {
		if f := Closest(n, "form"); f != nil {
			d.submit(f)
		}
	}
	return nil
}

// Input sets the value of the first element matching selector, dispatches an
// input event, and returns the value left after listeners ran (masks).
func (d *Document) Input(selector, value string) (string, error) {
	n := d.QuerySelector(selector)
	if n == nil {
		return "", ErrNoElement
	}
	d.SetValue(n, value)
	d.Dispatch(&Event{Type: Input, Target: n})
	return d.Value(n), nil
}

// Submit dispatches a submit event on the form matching selector (or the
// form enclosing the matched element).
func (d *Document) Submit(selector string) error {
	n := d.QuerySelector(selector)
	if n == nil {
		return ErrNoElement
	}
	f := Closest(n, "form")
	if f == nil {
		return ErrNoElement
	}
	d.submit(f)
	return nil
}

func (d *Document) submit(form *html.Node) {
	if d.Dispatch(&Event{Type: Submit, Target: form}) {
		d.logger.Info("dom: native form submission ignored", "action", Attr(form, "action"))
	}
}

func isSubmitter(n *html.Node) bool {
	switch n.Data {
	case "button":
		t := strings.ToLower(Attr(n, "type"))
		return t == "" || t == "submit"
	case "input":
		return strings.EqualFold(Attr(n, "type"), "submit")
	}
	return false
}

// pruneDetached drops bindings whose element left the tree. Caller holds mu.
func (d *Document) pruneDetached() {
	kept := d.order[:0]
	for _, k := range d.order {
		if d.attached(k.node) {
			kept = append(kept, k)
		} else {
			delete(d.bindings, k)
		}
	}
	d.order = kept
}
