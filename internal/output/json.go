package output

import (
	"io"

	"github.com/go-faster/jx"
	"github.com/ramkansal/phonegrabber/pkg/plugin"
)

// JSONWriter renders a summary as a single JSON object.
type JSONWriter struct {
	w io.Writer
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{w: w}
}

func (j *JSONWriter) Name() string { return "json" }

func (j *JSONWriter) Write(summary *plugin.Summary) error {
	var e jx.Encoder
	e.ObjStart()

	e.FieldStart("phones")
	writeStrings(&e, summary.Phones.Sorted())

	e.FieldStart("accepted")
	writeStrings(&e, summary.Accepted)

	e.FieldStart("rejected")
	writeStrings(&e, summary.Rejected)

	e.FieldStart("pages_fetched")
	e.Int(summary.PagesFetched)

	e.FieldStart("pages_failed")
	e.Int(summary.PagesFailed)

	e.FieldStart("duration_ms")
	e.Int64(summary.Duration.Milliseconds())

	e.ObjEnd()

	_, err := j.w.Write(append(e.Bytes(), '\n'))
	return err
}

func writeStrings(e *jx.Encoder, values []string) {
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}
