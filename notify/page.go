package notify

import "golang.org/x/net/html"

// PageSurface is what Page needs to render into a document.
type PageSurface interface {
	EnsureElement(id string) *html.Node
	EnsureChild(parent *html.Node, tag, id string) *html.Node
	AppendElement(parent *html.Node, tag, class, text string) *html.Node
	SetText(n *html.Node, text string)
	SetAttr(n *html.Node, key, val string)
}

// Page renders notices as toasts in #toaster and the modal into #modal-title
// and #modal-body under #modal-root, each created on first use. Toasts accumulate; nothing expires them.
type Page struct {
	s PageSurface
}

// NewPage creates a Page notifier over s.
func NewPage(s PageSurface) *Page {
	return &Page{s: s}
}

func (p *Page) Notify(message string, kind Kind) {
	wrap := p.s.EnsureElement("toaster")
	if wrap == nil {
		return
	}
	p.s.SetAttr(wrap, "aria-live", "polite")
	p.s.AppendElement(wrap, "div", "toast toast-"+kind.String(), message)
}

func (p *Page) ShowModal(title, body string) {
	root := p.s.EnsureElement("modal-root")
	if root == nil {
		return
	}
	p.s.SetAttr(root, "role", "dialog")
	p.s.SetAttr(root, "data-open", "true")
	p.s.SetText(p.s.EnsureChild(root, "h3", "modal-title"), title)
	p.s.SetText(p.s.EnsureChild(root, "div", "modal-body"), body)
}
