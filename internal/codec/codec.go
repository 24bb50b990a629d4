// Package codec serializes topology snapshots for export. Exports carry
// whatever positions were merged into the snapshot at serve time.
package codec

import (
	"io"

	"meshview/internal/domain"
)

// Exporter interface for exporting a topology snapshot to various formats
type Exporter interface {
	Export(graph *domain.Graph, w io.Writer) error
	Format() string
}
