package dom

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// Markdown renders the region matching selector (the whole body when it is
// missing) as markdown, for terminals and tool output.
func (d *Document) Markdown(selector string) (string, error) {
	src := d.InnerHTML(selector)
	if src == "" {
		src = d.InnerHTML("body")
	}
	md, err := mdConverter.ConvertString(src, converter.WithDomain(d.Location().String()))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(md), nil
}
