package nav

import (
	"context"
	"net/url"
	"strings"

	"github.com/hazyhaar/ongspa/dom"
)

// ClickSource delivers document-level click events.
type ClickSource interface {
	AddEventListener(typ dom.EventType, key string, fn dom.Listener)
}

// Navigator starts an asynchronous navigation.
type Navigator interface {
	Go(ctx context.Context, p string, recordHistory bool)
}

// InterceptLinks subscribes once to document clicks and turns same-site link
// clicks into in-place navigations. Anchors and links carrying a scheme or a
// host (http(s), mailto, protocol-relative) keep their native behaviour.
func InterceptLinks(ctx context.Context, src ClickSource, n Navigator) {
	src.AddEventListener(dom.Click, "nav-links", func(ev *dom.Event) {
		a := dom.Closest(ev.Target, "a")
		if a == nil {
			return
		}
		href := dom.Attr(a, "href")
		if !Intercepts(href) {
			return
		}
		ev.PreventDefault()
		n.Go(ctx, href, true)
	})
}

// Intercepts reports whether a link to href is handled in place.
func Intercepts(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return false
	}
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	// Any scheme or host, protocol-relative links included, leaves the site.
	return u.Scheme == "" && u.Host == ""
}
