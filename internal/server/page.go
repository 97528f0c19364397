package server

import (
	"bytes"
	"fmt"
	"html/template"
	"slices"

	"linkdesk/internal/axis"
	"linkdesk/internal/session"
	"linkdesk/internal/toggle"
	"linkdesk/internal/types"
)

// The page is plain nested tables of linked images. Images inside a cell sit
// next to each other, so the templates trim every space between tags.
var pageTemplate = template.Must(template.New("page").Parse(`
{{- define "img" -}}
<img src="{{.Src}}" width="{{.Width}}%" align="top"{{with .Title}} alt="{{.}}" title="{{.}}"{{end}}>
{{- end -}}

{{- define "link" -}}
{{if .Href}}<a href="{{.Href}}">{{template "img" .}}</a>{{else}}{{template "img" .}}{{end}}
{{- end -}}

{{- define "ruler" -}}
<table><tbody><tr><td>
{{- template "img" .Top -}}
{{- range .Rows -}}
<br>{{template "img" $.Left}}{{range .}}{{template "link" .}}{{end}}{{template "img" $.Right}}
{{- end -}}
<br>{{template "img" .Bottom -}}
</td></tr></tbody></table>
{{- end -}}

<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title></head><body>
<table><tbody>
<tr><td><table><tbody>
<tr><td></td><td>{{template "ruler" .X}}</td></tr>
<tr><td>{{template "ruler" .Y}}</td><td>{{template "img" .Screen}}</td></tr>
</tbody></table></td></tr>
<tr><td><table><tbody><tr><td>
{{- range .Keys -}}
{{range .}}{{template "link" .}}{{end}}<br>
{{- end -}}
</td><td>
{{- range .MouseButtons}}{{template "link" .}}{{end -}}
<br>{{template "img" .MouseBody -}}
</td></tr></tbody></table></td></tr>
</tbody></table>
</body></html>
`))

type pageImage struct {
	Src   string
	Href  string
	Title string
	Width string
}

type pageRuler struct {
	Top, Bottom, Left, Right pageImage
	Rows                     [][]pageImage
}

type pageData struct {
	Title        string
	X, Y         pageRuler
	Screen       pageImage
	Keys         [][]pageImage
	MouseButtons []pageImage
	MouseBody    pageImage
}

// percent is w as a share of 99% of full, the way the whole layout scales
// with the browser window.
func percent(w, full int) string {
	return fmt.Sprintf("%.4g", 99*float64(w)/float64(full))
}

func rulerData(a *axis.Axis) pageRuler {
	rects := a.Rects()
	full := rects.Full.Width
	prefix := "/axis/" + a.Name()
	border := func(name string, r types.Rect) pageImage {
		return pageImage{Src: prefix + "/" + name + ".gif", Width: percent(r.Width, full)}
	}
	ruler := pageRuler{
		Top:    border("top", rects.Top),
		Bottom: border("bottom", rects.Bottom),
		Left:   border("left", rects.Left),
		Right:  border("right", rects.Right),
	}
	// slices sharing a rect row form one line of the ruler
	rowY := -1
	for _, s := range a.Slices() {
		if s.Rect.Y != rowY {
			ruler.Rows = append(ruler.Rows, nil)
			rowY = s.Rect.Y
		}
		last := len(ruler.Rows) - 1
		ruler.Rows[last] = append(ruler.Rows[last], pageImage{
			Src:   fmt.Sprintf("%s/%d/image.gif", prefix, s.Index),
			Href:  fmt.Sprintf("%s/%d/move", prefix, s.Index),
			Title: fmt.Sprintf("%s = %d", a.Name(), s.Position),
			Width: percent(s.Rect.Width, full),
		})
	}
	return ruler
}

func switchTitle(s toggle.Switch) string {
	if s.Arrow {
		return s.Direction.String()
	}
	if s.ShiftedLabel != "" && s.ShiftedLabel != s.Label {
		return s.Label + " " + s.ShiftedLabel
	}
	return s.Label
}

func panelData(p *toggle.Panel) [][]pageImage {
	var rows [][]pageImage
	rowY := -1
	for _, s := range p.Switches() {
		if s.Rect.Y != rowY {
			rows = append(rows, nil)
			rowY = s.Rect.Y
		}
		prefix := "/toggle/" + p.Name() + "/" + s.ID
		rows[len(rows)-1] = append(rows[len(rows)-1], pageImage{
			Src:   prefix + "/image.gif",
			Href:  prefix + "/click",
			Title: switchTitle(s),
			Width: percent(s.Rect.Width, p.Size().Width),
		})
	}
	return rows
}

// renderPage lays out the whole client. Every image and link on it is fixed
// by the session layout, so it is rendered once.
func renderPage(s *session.Session, title string) ([]byte, error) {
	mouse := s.Mouse.Size().Width
	data := pageData{
		Title: title,
		X:     rulerData(s.X),
		Y:     rulerData(s.Y),
		Screen: pageImage{
			Src:   "/stream.gif",
			Title: "Click the rulers above and left of the screen to move the pointer",
			Width: "99",
		},
		Keys:         panelData(s.Keyboard),
		MouseButtons: slices.Concat(panelData(s.Mouse.Panel)...),
		MouseBody: pageImage{
			Src:   "/mouse/body.gif",
			Width: percent(s.Mouse.BodyRect().Width, mouse),
		},
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return buf.Bytes(), nil
}
