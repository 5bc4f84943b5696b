package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/zombor/lotto-checker/internal/flow"
	"github.com/zombor/lotto-checker/internal/ticket"
)

//go:embed static/index.html
var indexHTML []byte

//go:embed static/app.css
var appCSS []byte

//go:embed static/app.js
var appJS []byte

//go:embed templates/*.html
var templatesFS embed.FS

var views = template.Must(template.New("views").ParseFS(templatesFS, "templates/*.html"))

// viewData is what a state fragment renders from
type viewData struct {
	ServerCamera bool
	CameraError  string
	Message      string
	Result       ticket.View
}

var viewNames = map[flow.StateName]string{
	flow.StateHome:       "home",
	flow.StateScanning:   "scanning",
	flow.StateProcessing: "processing",
	flow.StateResult:     "result",
	flow.StateError:      "error",
}

// renderState renders the fragment shown for st
func renderState(st flow.State, serverCamera bool) ([]byte, error) {
	name, ok := viewNames[st.Name()]
	if !ok {
		return nil, fmt.Errorf("no view for state %s", st.Name())
	}

	data := viewData{ServerCamera: serverCamera}
	switch st := st.(type) {
	case flow.Scanning:
		data.CameraError = st.CameraError
	case flow.Failure:
		data.Message = st.Message
	case flow.Result:
		data.Result = ticket.Present(st.Result)
	}

	var buf bytes.Buffer
	if err := views.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("rendering %s view: %w", name, err)
	}
	return buf.Bytes(), nil
}
