package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rxtech-lab/argo-chain/internal/types"
	"gopkg.in/yaml.v3"
)

const StatsFileName = "stats.yaml"

// YAMLSink writes the report summary to stats.yaml.
type YAMLSink struct{}

func NewYAMLSink() *YAMLSink {
	return &YAMLSink{}
}

func (s *YAMLSink) Write(folder string, report types.Report) error {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	if err := os.WriteFile(filepath.Join(folder, StatsFileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write stats: %w", err)
	}

	return nil
}
