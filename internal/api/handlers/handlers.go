// Package handlers implements the HTTP surface of the assistant: event
// ingestion (messages, button actions, batches), streaming chat, and
// read-only ledger and job endpoints.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-assistant/internal/api/middleware"
	"github.com/dvloznov/ledger-assistant/internal/assistant"
	"github.com/dvloznov/ledger-assistant/internal/jobs"
	"github.com/dvloznov/ledger-assistant/internal/ledger"
)

// EventsHandler handles conversational event endpoints.
type EventsHandler struct {
	assistant *assistant.Assistant
	log       zerolog.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(a *assistant.Assistant, log zerolog.Logger) *EventsHandler {
	return &EventsHandler{assistant: a, log: log}
}

type messageRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// HandleMessage handles POST /api/events/message.
func (h *EventsHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || req.Text == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id and text are required")
		return
	}

	reply, err := h.assistant.HandleMessage(r.Context(), req.UserID, req.Text)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Message handling failed")
	}
	if reply == nil {
		middleware.WriteError(w, http.StatusInternalServerError, "No reply produced")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, reply)
}

type actionRequest struct {
	UserID string            `json:"user_id"`
	Data   map[string]string `json:"data"`
}

// HandleAction handles POST /api/events/action.
func (h *EventsHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || len(req.Data) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "user_id and data are required")
		return
	}

	reply, err := h.assistant.HandleAction(r.Context(), req.UserID, req.Data)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Action handling failed")
	}
	if reply == nil {
		middleware.WriteError(w, http.StatusInternalServerError, "No reply produced")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, reply)
}

type batchRequest struct {
	UserID  string   `json:"user_id"`
	Entries []string `json:"entries"`
}

// HandleBatch handles POST /api/events/batch. Entries are processed as
// one batch message; a failing entry never blocks the rest.
func (h *EventsHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || len(req.Entries) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "user_id and entries are required")
		return
	}

	text := ""
	for i, entry := range req.Entries {
		if i > 0 {
			text += "\n"
		}
		text += entry
	}
	reply, err := h.assistant.HandleMessage(r.Context(), req.UserID, text)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Batch handling failed")
	}
	if reply == nil {
		middleware.WriteError(w, http.StatusInternalServerError, "No reply produced")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, reply)
}

// ChatHandler streams chat answers over server-sent events.
type ChatHandler struct {
	assistant *assistant.Assistant
	log       zerolog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(a *assistant.Assistant, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{assistant: a, log: log}
}

type chatRequest struct {
	UserID   string `json:"user_id"`
	Question string `json:"question"`
	Stream   bool   `json:"stream"`
}

// HandleChat handles POST /api/chat. With stream=true the answer is sent
// as SSE data events; closing the connection cancels the upstream model
// request via the request context.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || req.Question == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id and question are required")
		return
	}

	if !req.Stream {
		reply, err := h.assistant.Chat(r.Context(), req.UserID, req.Question)
		if err != nil {
			h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Chat failed")
			middleware.WriteError(w, http.StatusInternalServerError, "Chat failed")
			return
		}
		middleware.WriteJSON(w, http.StatusOK, reply)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		middleware.WriteError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	err := h.assistant.ChatStream(r.Context(), req.UserID, req.Question, func(chunk string) error {
		payload, err := json.Marshal(map[string]string{"text": chunk})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Chat stream failed")
		return
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// TransactionsHandler handles read-only transaction endpoints.
type TransactionsHandler struct {
	store ledger.Store
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(store ledger.Store, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{store: store, log: log}
}

// ListTransactions handles GET /api/transactions.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userID := query.Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	var startDate, endDate time.Time
	var err error
	if s := query.Get("start_date"); s != "" {
		if startDate, err = time.Parse("2006-01-02", s); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
			return
		}
	}
	if s := query.Get("end_date"); s != "" {
		if endDate, err = time.Parse("2006-01-02", s); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
			return
		}
	}

	txs, err := h.store.GetTransactions(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}

	filtered := make([]*ledger.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !startDate.IsZero() && tx.Date.Before(startDate) {
			continue
		}
		if !endDate.IsZero() && !tx.Date.Before(endDate.AddDate(0, 0, 1)) {
			continue
		}
		filtered = append(filtered, tx)
	}
	middleware.WriteJSON(w, http.StatusOK, filtered)
}

// CategoriesHandler handles category endpoints.
type CategoriesHandler struct {
	store ledger.Store
	log   zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(store ledger.Store, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{store: store, log: log}
}

// ListCategories handles GET /api/categories.
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	categories, err := h.store.GetCategories(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list categories")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// JobsHandler handles job-status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: query.Get("user_id"),
		Type:   jobs.JobType(query.Get("type")),
		Status: jobs.JobStatus(query.Get("status")),
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
