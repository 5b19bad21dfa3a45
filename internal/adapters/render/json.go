package render

import (
	"encoding/json"
	"io"

	"github.com/evanschultz/selftrack/internal/domain"
)

// JSON writes the report as indented JSON.
func JSON(w io.Writer, report domain.FinalReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
