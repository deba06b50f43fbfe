// Package widget renders the search-and-select control for a reference
// field. The element id convention is part of the client contract: the
// shared behavior script locates the pieces by their composite ids.
package widget

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"orderdesk/pkg/search"
)

// markup lays out the three pieces every selection control has: the hidden
// value holder (<table>_<field>), the visible search input
// (<table>_<field>_search) and the results container
// (<table>_<field>_autocomplete_results). The surrounding div carries the
// parameters the behavior script sends with each search request.
var markup = template.Must(template.New("widget").Parse(`<div class="fk-select"
     data-table="{{.Table}}" data-field="{{.Field}}"
     data-url="{{.SearchURL}}"{{if .Exclude}} data-exclude="{{.Exclude}}"{{end}}>
  <div style="display: none;">
    <input type="text" id="{{.Table}}_{{.Field}}" name="{{.Field}}" value="{{.Value}}">
  </div>
  <input type="text" id="{{.Table}}_{{.Field}}_search" name="{{.Table}}_{{.Field}}_search"
         class="input" placeholder=".." title="Enter search string"
         autocomplete="off" value="{{.Label}}">
  <div id="{{.Table}}_{{.Field}}_autocomplete_results"></div>
</div>
`))

type widgetData struct {
	Table     string
	Field     string
	SearchURL string
	Exclude   string
	Value     string
	Label     string
}

// Renderer builds selection controls, using the resolver for the point
// lookup that pre-populates the label of an already-set value.
type Renderer struct {
	resolver  *search.Resolver
	searchURL string
}

// NewRenderer creates a renderer whose controls query searchURL.
func NewRenderer(resolver *search.Resolver, searchURL string) *Renderer {
	return &Renderer{resolver: resolver, searchURL: searchURL}
}

// Render produces the control for table.field. A non-zero value triggers a
// point lookup by key so the visible input starts with the value's label;
// excludeIDs are embedded so every search request carries them.
func (r *Renderer) Render(ctx context.Context, table, field string, value int64, excludeIDs []int64) (template.HTML, error) {
	data := widgetData{
		Table:     table,
		Field:     field,
		SearchURL: r.searchURL,
		Exclude:   joinKeys(excludeIDs),
	}
	if value != 0 {
		label, err := r.resolver.LookupLabel(ctx, table, field, value)
		if err != nil {
			return "", fmt.Errorf("lookup label for %s.%s=%d: %w", table, field, value, err)
		}
		data.Value = strconv.FormatInt(value, 10)
		data.Label = label
	}
	var buf bytes.Buffer
	if err := markup.Execute(&buf, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func joinKeys(keys []int64) string {
	if len(keys) == 0 {
		return ""
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strconv.FormatInt(k, 10)
	}
	return strings.Join(parts, ",")
}
