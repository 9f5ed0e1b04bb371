package report

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLReporter outputs the JSON document structure as YAML.
type YAMLReporter struct{}

// Format returns "yaml".
func (r *YAMLReporter) Format() string {
	return "yaml"
}

// Generate writes the run as YAML to w.
func (r *YAMLReporter) Generate(ctx context.Context, run *Run, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(run)); err != nil {
		return fmt.Errorf("report: encode yaml: %w", err)
	}
	return enc.Close()
}
