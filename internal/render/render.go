// Package render turns links into the view models the panel displays.
package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/starford/dddot/internal/bridge"
	"github.com/starford/dddot/internal/models"
)

// LinkView is a transport-safe view of a link. The click handlers are bridge
// messages the panel posts back to the host.
type LinkView struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Kind            models.LinkKind `json:"type"`
	IsTodo          bool            `json:"isTodo,omitempty"`
	IsTodoCompleted bool            `json:"isTodoCompleted,omitempty"`
	OnClick         bridge.Message  `json:"onClick"`
	OnContextMenu   *bridge.Message `json:"onContextMenu,omitempty"`
	HTML            string          `json:"html"`
}

// Options are the per-link handlers.
type Options struct {
	OnClick       bridge.Message
	OnContextMenu *bridge.Message
}

const linkTmpl = `<div class="dddot-{{if eq .Kind "FolderLink"}}folder{{else}}note{{end}}-item" data-id="{{.ID}}">` +
	`{{if .IsTodo}}<input type="checkbox" disabled{{if .IsTodoCompleted}} checked{{end}}>{{end}}` +
	`<span class="dddot-link-title">{{.Title}}</span></div>`

const listTmpl = `<div class=dddot-note-list>{{range .}}
{{.HTML}}{{end}}
</div>`

// Renderer renders links with html/template so titles are always escaped.
type Renderer struct {
	link *template.Template
	list *template.Template
}

// New parses the link templates.
func New() *Renderer {
	return &Renderer{
		link: template.Must(template.New("link").Parse(linkTmpl)),
		list: template.Must(template.New("list").Parse(listTmpl)),
	}
}

// Link renders l. The displayed title is the final title when one was
// computed, the stored title otherwise.
func (r *Renderer) Link(l models.Link, opts Options) (LinkView, error) {
	title := l.FinalTitle
	if title == "" {
		title = l.Title
	}
	v := LinkView{
		ID:              l.ID,
		Title:           title,
		Kind:            l.Kind,
		IsTodo:          l.Kind == models.NoteLink && l.IsTodo,
		IsTodoCompleted: l.Kind == models.NoteLink && l.IsTodoCompleted,
		OnClick:         opts.OnClick,
		OnContextMenu:   opts.OnContextMenu,
	}
	var buf bytes.Buffer
	if err := r.link.Execute(&buf, v); err != nil {
		return LinkView{}, fmt.Errorf("render: link %q: %w", l.ID, err)
	}
	v.HTML = buf.String()
	return v, nil
}

// Links renders every link with the options opts returns for it.
func (r *Renderer) Links(links []models.Link, opts func(models.Link) Options) ([]LinkView, error) {
	out := make([]LinkView, 0, len(links))
	for _, l := range links {
		v, err := r.Link(l, opts(l))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// List wraps rendered links in the list container.
func (r *Renderer) List(views []LinkView) (string, error) {
	var buf bytes.Buffer
	if err := r.list.Execute(&buf, htmlViews(views)); err != nil {
		return "", fmt.Errorf("render: list: %w", err)
	}
	return buf.String(), nil
}

type htmlView struct{ HTML template.HTML }

// htmlViews marks fragments produced by Link as safe for the list template.
func htmlViews(views []LinkView) []htmlView {
	out := make([]htmlView, len(views))
	for i, v := range views {
		out[i] = htmlView{HTML: template.HTML(v.HTML)} //nolint:gosec // produced by the escaping link template
	}
	return out
}
