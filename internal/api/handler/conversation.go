package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Rrens/flight-support/internal/api/middleware"
	"github.com/Rrens/flight-support/internal/api/response"
	"github.com/Rrens/flight-support/internal/domain"
	"github.com/Rrens/flight-support/internal/service"
	"github.com/go-chi/chi/v5"
)

// ConversationHandler handles conversation endpoints
type ConversationHandler struct {
	svc *service.ConversationService
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(svc *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// Create starts a conversation. user_id defaults to the caller.
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if caller, ok := middleware.GetUserID(r.Context()); ok && req.UserID == 0 {
		req.UserID = caller
	}
	if !middleware.CanActFor(r.Context(), req.UserID) {
		response.Forbidden(w, "cannot open a conversation for another user")
		return
	}

	conv, err := h.svc.Create(r.Context(), req)
	if err != nil {
		response.Failure(w, r, err)
		return
	}

	response.Created(w, conv)
}

// Get returns the index record, or index and transcript with ?include=content
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")

	if r.URL.Query().Get("include") == "content" {
		conv, err := h.svc.GetConversation(r.Context(), id)
		if err != nil {
			response.Failure(w, r, err)
			return
		}
		response.OK(w, conv)
		return
	}

	idx, err := h.svc.GetIndex(r.Context(), id)
	if err != nil {
		response.Failure(w, r, err)
		return
	}

	response.OK(w, idx)
}

// Content returns the full transcript
func (h *ConversationHandler) Content(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetContent(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		response.Failure(w, r, err)
		return
	}

	response.OK(w, t)
}

// RecentMessages returns the last n messages, oldest first
func (h *ConversationHandler) RecentMessages(w http.ResponseWriter, r *http.Request) {
	n := 0
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			response.BadRequest(w, "n must be a non-negative integer")
			return
		}
		n = parsed
	}

	msgs, err := h.svc.GetRecentMessages(r.Context(), chi.URLParam(r, "uuid"), n)
	if err != nil {
		response.Failure(w, r, err)
		return
	}

	response.OK(w, msgs)
}

// Append adds a message to the transcript
func (h *ConversationHandler) Append(w http.ResponseWriter, r *http.Request) {
	var req domain.AppendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	msg, err := h.svc.AppendMessage(r.Context(), chi.URLParam(r, "uuid"), req)
	if err != nil {
		response.Failure(w, r, err)
		return
	}

	response.Created(w, msg)
}

// Sync refreshes the index's last message from the transcript
func (h *ConversationHandler) Sync(w http.ResponseWriter, r *http.Request) {
	idx, err := h.svc.SyncLastMessage(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		response.Failure(w, r, err)
		return
	}

	response.OK(w, idx)
}

// Transfer hands the conversation to an agent
func (h *ConversationHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	idx, err := h.svc.TransferToService(r.Context(), chi.URLParam(r, "uuid"), req)
	if err != nil {
		response.Failure(w, r, err)
		return
	}

	response.OK(w, idx)
}

// Close closes the conversation
func (h *ConversationHandler) Close(w http.ResponseWriter, r *http.Request) {
	idx, err := h.svc.CloseConversation(r.Context(), chi.URLParam(r, "uuid"))
	if err != nil {
		response.Failure(w, r, err)
		return
	}

	response.OK(w, idx)
}

// Delete removes the conversation from both stores
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteConversation(r.Context(), chi.URLParam(r, "uuid")); err != nil {
		response.Failure(w, r, err)
		return
	}

	response.NoContent(w)
}

// ListByUser returns a user's index records
func (h *ConversationHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userParam(w, r, "userID")
	if !ok {
		return
	}

	list, err := h.svc.ListByUser(r.Context(), userID)
	if err != nil {
		response.Failure(w, r, err)
		return
	}

	response.OK(w, list)
}

// ListContentsByUser returns a user's transcripts
func (h *ConversationHandler) ListContentsByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userParam(w, r, "userID")
	if !ok {
		return
	}

	list, err := h.svc.ListContentsByUser(r.Context(), userID)
	if err != nil {
		response.Failure(w, r, err)
		return
	}

	response.OK(w, list)
}

// Active returns the user's open conversation
func (h *ConversationHandler) Active(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userParam(w, r, "userID")
	if !ok {
		return
	}

	idx, err := h.svc.GetActiveByUser(r.Context(), userID)
	if err != nil {
		response.Failure(w, r, err)
		return
	}
	if idx == nil {
		response.NotFound(w, "no active conversation")
		return
	}

	response.OK(w, idx)
}

// ListByService returns the agent's assigned conversations
func (h *ConversationHandler) ListByService(w http.ResponseWriter, r *http.Request) {
	serviceUserID, ok := h.userParam(w, r, "serviceUserID")
	if !ok {
		return
	}

	list, err := h.svc.ListByService(r.Context(), serviceUserID)
	if err != nil {
		response.Failure(w, r, err)
		return
	}

	response.OK(w, list)
}

// ListTransferred returns the agent queue
func (h *ConversationHandler) ListTransferred(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListTransferred(r.Context())
	if err != nil {
		response.Failure(w, r, err)
		return
	}

	response.OK(w, list)
}

// ListAll returns every index record
func (h *ConversationHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListAll(r.Context())
	if err != nil {
		response.Failure(w, r, err)
		return
	}

	response.OK(w, list)
}

func (h *ConversationHandler) userParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "invalid "+name)
		return 0, false
	}
	if !middleware.CanActFor(r.Context(), id) {
		response.Forbidden(w, "forbidden")
		return 0, false
	}
	return id, true
}
