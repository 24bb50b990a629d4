package handler

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"meshview/internal/codec"
)

// exporters maps URL format names to codecs
var exporters = map[string]codec.Exporter{
	"json": codec.NewJSONCodec(),
	"yaml": codec.NewYAMLCodec(),
}

var exportContentTypes = map[string]string{
	"json": "application/json",
	"yaml": "application/x-yaml",
}

// Export serializes the current snapshot in the requested format as a
// download. Positions are merged in, same as the graph endpoint.
func (h *TopologyHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := r.PathValue("format")
	exp, ok := exporters[format]
	if !ok {
		h.writeError(w, "Unsupported format", "Supported formats: json, yaml", http.StatusBadRequest)
		return
	}

	graph := h.svc.Graph(r.Context())
	filename := fmt.Sprintf("topology-%s.%s", time.Now().Format("20060102-150405"), format)

	w.Header().Set("Content-Type", exportContentTypes[format])
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := exp.Export(graph, w); err != nil {
		log.Printf("Failed to export %s: %v", format, err)
	}
}
