package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"meshview/internal/collector"
	"meshview/internal/domain"
	"meshview/internal/service"
)

// TopologyHandler handles topology API requests
type TopologyHandler struct {
	svc *service.TopologyService
}

// NewTopologyHandler creates a new topology handler
func NewTopologyHandler(svc *service.TopologyService) *TopologyHandler {
	return &TopologyHandler{svc: svc}
}

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// GetGraph returns the current snapshot with positions merged in
func (h *TopologyHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.svc.Graph(r.Context()), http.StatusOK)
}

// Refresh triggers a background refresh cycle. A refresh already in flight
// is joined, never duplicated, so hammering the button is harmless.
func (h *TopologyHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	go func() {
		if _, err := h.svc.Refresh(context.Background()); err != nil {
			log.Printf("Background refresh failed: %v", err)
		}
	}()

	h.writeJSON(w, map[string]string{"status": "refresh_started"}, http.StatusAccepted)
}

// GetStatus reports the last collection outcome. Read-only.
func (h *TopologyHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.svc.Status(), http.StatusOK)
}

// Health is the liveness check. Read-only, no side effects.
func (h *TopologyHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// ListNodes returns the nodes of the current snapshot
func (h *TopologyHandler) ListNodes(w http.ResponseWriter, r *http.Request) {
	graph := h.svc.Graph(r.Context())

	role := r.URL.Query().Get("role")
	if role == "" {
		h.writeJSON(w, graph.Nodes, http.StatusOK)
		return
	}

	filtered := make([]domain.GraphNode, 0, len(graph.Nodes))
	for _, n := range graph.Nodes {
		if string(n.Role) == role {
			filtered = append(filtered, n)
		}
	}
	h.writeJSON(w, filtered, http.StatusOK)
}

// GetNode returns a single node from the current snapshot
func (h *TopologyHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	ieee := r.PathValue("ieee")
	if ieee == "" {
		h.writeError(w, "Invalid node ID", "Node identifier is required", http.StatusBadRequest)
		return
	}

	node := h.svc.Graph(r.Context()).NodeByIEEE(ieee)
	if node == nil {
		h.writeError(w, "Not found", "No node with identifier "+ieee, http.StatusNotFound)
		return
	}
	h.writeJSON(w, node, http.StatusOK)
}

// GetPositions returns all stored node positions
func (h *TopologyHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.svc.Positions(r.Context())
	if err != nil {
		log.Printf("Failed to get positions: %v", err)
		h.writeError(w, "Failed to get positions", err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, positions, http.StatusOK)
}

// SavePositions saves multiple node positions
func (h *TopologyHandler) SavePositions(w http.ResponseWriter, r *http.Request) {
	var positions []domain.NodePosition
	if err := json.NewDecoder(r.Body).Decode(&positions); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.svc.SetPositions(r.Context(), positions); err != nil {
		log.Printf("Failed to save positions: %v", err)
		h.writeError(w, "Failed to save positions", err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]int{"saved": len(positions)}, http.StatusOK)
}

// UpdatePosition upserts a single node position
func (h *TopologyHandler) UpdatePosition(w http.ResponseWriter, r *http.Request) {
	ieee := r.PathValue("ieee")
	if ieee == "" {
		h.writeError(w, "Invalid node ID", "Node identifier is required", http.StatusBadRequest)
		return
	}

	var pos domain.NodePosition
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	pos.IEEE = ieee // path wins over body

	if err := h.svc.SetPosition(r.Context(), pos); err != nil {
		log.Printf("Failed to update position: %v", err)
		h.writeError(w, "Failed to update position", err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, pos, http.StatusOK)
}

// ResetPositions clears all positions in one coordinate space
func (h *TopologyHandler) ResetPositions(w http.ResponseWriter, r *http.Request) {
	space := r.URL.Query().Get("space")
	if space == "" {
		space = domain.SpaceFree
	}
	if space != domain.SpaceFree && space != domain.SpaceImage {
		h.writeError(w, "Invalid coordinate space", "Space must be 'free' or 'image'", http.StatusBadRequest)
		return
	}

	if err := h.svc.ResetPositions(r.Context(), space); err != nil {
		log.Printf("Failed to reset positions: %v", err)
		h.writeError(w, "Failed to reset positions", err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]string{"status": "reset", "space": space}, http.StatusOK)
}

// statusFor maps pipeline failures onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, collector.ErrConnection):
		return http.StatusBadGateway
	case errors.Is(err, collector.ErrSuccessFloor):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RefreshAndWait runs a refresh synchronously and returns the new snapshot.
// A failure reports the error but the previous snapshot stays served.
func (h *TopologyHandler) RefreshAndWait(w http.ResponseWriter, r *http.Request) {
	graph, err := h.svc.Refresh(r.Context())
	if err != nil {
		h.writeError(w, "Refresh failed", err.Error(), statusFor(err))
		return
	}
	h.writeJSON(w, graph, http.StatusOK)
}

// Helper methods

func (h *TopologyHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *TopologyHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}
