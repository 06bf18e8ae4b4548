package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	pb "github.com/arjun-mehta/pointcloudkit/pkg/api/grpc/proto"
)

// Handler wraps the registration gRPC client behind plain JSON HTTP.
type Handler struct {
	client pb.RegistrationServiceClient
	start  time.Time
}

// NewHandler builds a Handler around an already-dialed gRPC client.
func NewHandler(client pb.RegistrationServiceClient) *Handler {
	return &Handler{client: client, start: time.Now()}
}

// HealthCheck handles GET /v1/health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": time.Since(h.start).Seconds(),
	}, http.StatusOK)
}

// alignRequestBody is the JSON body POST /v1/align accepts.
type alignRequestBody struct {
	RequestID string               `json:"request_id,omitempty"`
	Source    pb.CloudMessage      `json:"source"`
	Target    pb.CloudMessage      `json:"target"`
	Config    *pb.PipelineOverride `json:"config,omitempty"`
}

// Align handles POST /v1/align: register source onto target and return the
// recovered transform.
func (h *Handler) Align(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body alignRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(body.Source.Points) == 0 || len(body.Target.Points) == 0 {
		writeError(w, "source and target clouds must be non-empty", http.StatusBadRequest)
		return
	}

	resp, err := h.client.Align(r.Context(), &pb.AlignRequest{
		RequestID: body.RequestID,
		Source:    body.Source,
		Target:    body.Target,
		Config:    body.Config,
	})
	if err != nil {
		writeError(w, fmt.Sprintf("align failed: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, resp, http.StatusOK)
}

func writeJSON(w http.ResponseWriter, v interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprintf(w, `{"error": "encoding response: %v"}`, err)
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, map[string]interface{}{"error": message, "status": statusCode}, statusCode)
}
