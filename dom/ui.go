package dom

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// EnsureElement returns the element with the given id, appending an empty
// <div id=...> to the body when there is none. It returns nil when the
// document has no body.
func (d *Document) EnsureElement(id string) *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := queryFirst(d.root, "#"+id); n != nil {
		return n
	}
	body := queryFirst(d.root, "body")
	if body == nil {
		return nil
	}
	n := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	setAttr(n, "id", id)
	body.AppendChild(n)
	return n
}

// EnsureChild returns the element with the given id anywhere in the
// document, or appends <tag id=id class=id> to parent when there is none.
// It returns nil when parent is nil and nothing matched.
func (d *Document) EnsureChild(parent *html.Node, tag, id string) *html.Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := queryFirst(d.root, "#"+id); n != nil {
		return n
	}
	if parent == nil {
		return nil
	}
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	setAttr(n, "id", id)
	setAttr(n, "class", id)
	parent.AppendChild(n)
	return n
}

// AppendElement appends <tag class=class>text</tag> to parent and returns it.
func (d *Document) AppendElement(parent *html.Node, tag, class, text string) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	if class != "" {
		setAttr(n, "class", class)
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	d.mu.Lock()
	parent.AppendChild(n)
	d.mu.Unlock()
	return n
}

// SetText replaces the children of n with text. A nil n is ignored.
func (d *Document) SetText(n *html.Node, text string) {
	if n == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	replaceChildren(n, []*html.Node{{Type: html.TextNode, Data: text}})
}

// SetAttr sets an attribute on n. A nil n is ignored.
func (d *Document) SetAttr(n *html.Node, key, val string) {
	if n == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	setAttr(n, key, val)
}
