package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Field is one named form entry, in document order.
type Field struct {
	Name  string
	Value string
}

// Forms returns every <form> element.
func (d *Document) Forms() []*html.Node {
	return d.QuerySelectorAll("form")
}

// Value returns the current value of an input, textarea or select.
func (d *Document) Value(n *html.Node) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return value(n)
}

// SetValue sets the current value of an input, textarea or select.
func (d *Document) SetValue(n *html.Node, v string) {
	if n == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	switch n.Data {
	case "textarea":
		replaceChildren(n, []*html.Node{{Type: html.TextNode, Data: v}})
	case "select":
		for _, opt := range queryAll(n, "option") {
			if optionValue(opt) == v {
				setAttr(opt, "selected", "")
			} else {
				removeAttr(opt, "selected")
			}
		}
	default:
		setAttr(n, "value", v)
	}
}

// FormValues collects the successful controls of form the way a browser
// builds form data: named, enabled, checked when checkable, buttons skipped.
func (d *Document) FormValues(form *html.Node) []Field {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Field
	for _, n := range queryAll(form, "*") {
		if n == form {
			continue
		}
		name := Attr(n, "name")
		if name == "" || HasAttr(n, "disabled") {
			continue
		}
		switch n.Data {
		case "input":
			switch strings.ToLower(Attr(n, "type")) {
			case "submit", "button", "reset", "image", "file":
				continue
			case "checkbox", "radio":
				if !HasAttr(n, "checked") {
					continue
				}
				v := Attr(n, "value")
				if !HasAttr(n, "value") {
					v = "on"
				}
				out = append(out, Field{Name: name, Value: v})
				continue
			}
			out = append(out, Field{Name: name, Value: value(n)})
		case "select", "textarea":
			out = append(out, Field{Name: name, Value: value(n)})
		}
	}
	return out
}

// ResetForm clears every text-like control in form, unchecks checkables and
// returns selects to their first option.
func (d *Document) ResetForm(form *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, n := range queryAll(form, "*") {
		switch n.Data {
		case "input":
			switch strings.ToLower(Attr(n, "type")) {
			case "submit", "button", "reset", "image", "hidden":
			case "checkbox", "radio":
				removeAttr(n, "checked")
			default:
				setAttr(n, "value", "")
			}
		case "textarea":
			replaceChildren(n, nil)
		case "select":
			for _, opt := range queryAll(n, "option") {
				removeAttr(opt, "selected")
			}
		}
	}
}

func value(n *html.Node) string {
	if n == nil {
		return ""
	}
	switch n.Data {
	case "textarea":
		return TextContent(n)
	case "select":
		opts := queryAll(n, "option")
		for _, opt := range opts {
			if HasAttr(opt, "selected") {
				return optionValue(opt)
			}
		}
		if len(opts) > 0 {
			return optionValue(opts[0])
		}
		return ""
	}
	return Attr(n, "value")
}

func optionValue(opt *html.Node) string {
	if HasAttr(opt, "value") {
		return Attr(opt, "value")
	}
	return strings.TrimSpace(TextContent(opt))
}
