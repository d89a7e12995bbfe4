// Package report persists strategy reports.
package report

import (
	"github.com/rxtech-lab/argo-chain/internal/types"
	"go.uber.org/multierr"
)

// Sink writes a report into a folder.
type Sink interface {
	Write(folder string, report types.Report) error
}

// MultiSink writes the report to every sink. All sinks are attempted; their errors are combined.
type MultiSink []Sink

func (m MultiSink) Write(folder string, report types.Report) error {
	var err error

	for _, sink := range m {
		if sink == nil {
			continue
		}

		err = multierr.Append(err, sink.Write(folder, report))
	}

	return err
}
