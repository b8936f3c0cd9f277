package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter writes the report as JSON. Amounts are quoted decimal strings.
type JSONFormatter struct {
	Indent string
}

func (f JSONFormatter) Format() Format { return FormatJSON }

func (f JSONFormatter) Render(w io.Writer, report *Report) error {
	enc := json.NewEncoder(w)
	if f.Indent != "" {
		enc.SetIndent("", f.Indent)
	}
	return enc.Encode(report)
}
