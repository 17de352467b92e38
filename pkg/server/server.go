package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aurora-qa/aurora/pkg/model"
	"github.com/aurora-qa/aurora/pkg/utils/logging"
)

const minQuestionLen = 3

// Answerer is what the HTTP layer needs from the QA use case.
type Answerer interface {
	Answer(ctx context.Context, question string) (*model.AnswerResult, error)
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer     string         `json:"answer"`
	Iterations int            `json:"iterations"`
	MemberID   model.MemberID `json:"member_id,omitempty"`
	Exhausted  bool           `json:"exhausted,omitempty"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// New builds the HTTP server. The ask endpoint accepts both GET with a
// question query parameter and POST with a JSON body.
func New(addr string, qa Answerer) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusOK, map[string]bool{"ok": true})
	})

	mux.HandleFunc("GET /ask", func(w http.ResponseWriter, r *http.Request) {
		handleAsk(w, r, qa, r.URL.Query().Get("question"))
	})

	mux.HandleFunc("POST /ask", func(w http.ResponseWriter, r *http.Request) {
		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(r.Context(), w, http.StatusUnprocessableEntity, errorResponse{Detail: "invalid JSON body"})
			return
		}
		handleAsk(w, r, qa, req.Question)
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Answering can take several engine round trips.
		WriteTimeout: 5 * time.Minute,
	}
}

func handleAsk(w http.ResponseWriter, r *http.Request, qa Answerer, question string) {
	ctx := r.Context()

	question = strings.TrimSpace(question)
	if len(question) < minQuestionLen {
		writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			Detail: "question must be at least 3 characters",
		})
		return
	}

	logging.From(ctx).Info("question received", "question", question)

	result, err := qa.Answer(ctx, question)
	if err != nil {
		logging.From(ctx).Error("failed to answer question", "question", question, "error", err)
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}

	writeJSON(ctx, w, http.StatusOK, askResponse{
		Answer:     result.Text,
		Iterations: result.Iterations,
		MemberID:   result.MemberID,
		Exhausted:  result.Exhausted,
	})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.From(ctx).Error("failed to write response", "error", err)
	}
}
