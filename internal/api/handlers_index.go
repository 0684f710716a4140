package api

import (
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/url-indexer/internal/errors"
	"github.com/url-indexer/internal/logging"
	"github.com/url-indexer/internal/sse"
)

// IndexRequest is the request for starting or resuming an indexing run.
// GET requests carry the same fields as query parameters, with urls
// comma-separated.
type IndexRequest struct {
	AppID     string   `json:"appId"`
	URLs      []string `json:"urls,omitempty"`
	SaveLog   bool     `json:"saveLog,omitempty"`
	RequestID string   `json:"requestId,omitempty"`
}

// parseIndexRequest extracts the run parameters from either the JSON body
// (POST) or the query string (GET, the form EventSource clients use).
func parseIndexRequest(r *http.Request) (*IndexRequest, error) {
	if r.Method == http.MethodPost {
		var req IndexRequest
		if err := parseJSONBody(r, &req); err != nil {
			return nil, apperrors.NewInvalidParameterError("body", "invalid JSON")
		}
		return &req, nil
	}

	q := r.URL.Query()
	req := &IndexRequest{
		AppID:     q.Get("appId"),
		RequestID: q.Get("requestId"),
	}
	if raw := q.Get("saveLog"); raw != "" {
		saveLog, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, apperrors.NewInvalidParameterError("saveLog", "must be a boolean")
		}
		req.SaveLog = saveLog
	}
	if raw := q.Get("urls"); raw != "" {
		for _, u := range strings.Split(raw, ",") {
			if u = strings.TrimSpace(u); u != "" {
				req.URLs = append(req.URLs, u)
			}
		}
	}
	return req, nil
}

// handleIndex handles GET|POST /api/index. The response is an event stream
// that stays open for the duration of the run. A client that reconnects with
// the same requestId resumes its run instead of starting over.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	req, err := parseIndexRequest(r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if req.AppID == "" {
		respondServiceError(w, apperrors.NewInvalidParameterError("appId", "is required"))
		return
	}

	app, err := s.appRepo.GetByID(r.Context(), req.AppID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	sink, ok := sse.NewHTTPSink(w)
	if !ok {
		respondError(w, http.StatusInternalServerError, ErrCodeStreamingOnly, "Streaming is not supported by this connection", nil)
		return
	}

	stream := sse.NewStream(sink, s.config.FlushInterval)
	defer stream.Close()

	batchID, err := s.executor.Execute(r.Context(), app, req.URLs, req.SaveLog, req.RequestID, stream)
	if err != nil {
		// The failure has already been streamed to the client as events;
		// headers are long gone, so there is nothing else to send.
		logging.FromContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
			"appId":   req.AppID,
			"batchId": batchID,
		}).Warn("Indexing run ended with error")
	}
}
