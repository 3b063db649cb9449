package reporter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/opsaudit/k8s-deploy-auditor/pkg/models"
)

// Format represents the report output format
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Reporter renders an analysis run to a writer.
type Reporter interface {
	Render(w io.Writer, run *models.AnalysisRun) error
}

// New creates a reporter for the given format.
func New(format Format) (Reporter, error) {
	switch format {
	case FormatJSON:
		return &jsonReporter{}, nil
	case FormatMarkdown:
		return &markdownReporter{}, nil
	default:
		return nil, fmt.Errorf("unknown report format: %s", format)
	}
}

type jsonReporter struct{}

func (r *jsonReporter) Render(w io.Writer, run *models.AnalysisRun) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}
