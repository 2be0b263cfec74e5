package nav

import "github.com/microcosm-cc/bluemonday"

// RegionPolicy is the sanitisation policy applied to injected content: user
// generated content rules plus the form controls the registration pages need.
// Scripts, event handler attributes and inline styles are dropped.
func RegionPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("form", "fieldset", "legend", "label", "input", "select", "option", "textarea", "button",
		"main", "section", "article", "header", "footer", "nav")
	p.AllowAttrs("id", "class").Globally()
	p.AllowAttrs("action", "method", "novalidate").OnElements("form")
	p.AllowAttrs("for").OnElements("label")
	p.AllowAttrs("name", "type", "value", "placeholder", "required", "maxlength", "minlength",
		"pattern", "checked", "disabled", "readonly", "autocomplete", "inputmode").OnElements("input")
	p.AllowAttrs("name", "required", "disabled", "multiple").OnElements("select")
	p.AllowAttrs("value", "selected", "disabled").OnElements("option")
	p.AllowAttrs("name", "rows", "cols", "placeholder", "required", "maxlength").OnElements("textarea")
	p.AllowAttrs("type", "name", "value", "disabled").OnElements("button")
	return p
}
