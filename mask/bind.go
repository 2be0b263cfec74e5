package mask

import (
	"golang.org/x/net/html"

	"github.com/hazyhaar/ongspa/dom"
)

// Surface is what Bind needs from the page.
type Surface interface {
	ElementByID(id string) *html.Node
	Bind(node *html.Node, typ dom.EventType, key string, fn dom.Listener) bool
	Value(n *html.Node) string
	SetValue(n *html.Node, v string)
}

// Targets maps element ids to their masks.
var Targets = map[string]Func{
	"cpf":      NationalID,
	"telefone": Phone,
	"cep":      PostalCode,
}

const bindKey = "mask"

// Bind attaches a live input mask to each target element present on s.
// Safe to call again after content is replaced: existing bindings are
// replaced, new elements get theirs. Returns how many bindings were new.
func Bind(s Surface) int {
	added := 0
	for id, fn := range Targets {
		el := s.ElementByID(id)
		if el == nil {
			continue
		}
		fn := fn
		if s.Bind(el, dom.Input, bindKey, func(ev *dom.Event) {
			s.SetValue(ev.Target, fn(s.Value(ev.Target)))
		}) {
			added++
		}
	}
	return added
}
