// GIF HTTP handlers.
//
// This file exposes REST endpoints for the GIF generation flows:
//   - POST /gifs            (dispatch an asynchronous generation)
//   - POST /gifs/preview    (debounced synchronous generation)
//   - POST /gifs/variations (debounced prompt variations)
//   - GET  /gifs/history    (list archived generations, paginated)
//
// Handlers are transport-thin: they validate and normalize inputs, assemble
// the request context (sender, room, thread), delegate to the application
// service, and translate outcomes into HTTP responses. Debounced endpoints
// answer 202 when a newer request superseded this one.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-gif-backend/internal/chat"
	"github.com/tbourn/go-gif-backend/internal/domain"
	"github.com/tbourn/go-gif-backend/internal/generation"
	"github.com/tbourn/go-gif-backend/internal/moderation"
	"github.com/tbourn/go-gif-backend/internal/services"
	"github.com/tbourn/go-gif-backend/internal/utils"
)

//
// Service contract (context-aware)
//

// GifService defines the generation operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type GifService interface {
	// Preview runs the debounced synchronous generation; ok=false with a nil
	// error means this call was superseded or the service had no result.
	Preview(ctx context.Context, rc services.RequestContext, prompt string) (string, bool, error)
	// Suggest returns debounced prompt variations on an independent slot.
	Suggest(ctx context.Context, rc services.RequestContext, prompt string) ([]moderation.Variation, bool, error)
	// Generate dispatches an asynchronous generation and returns its id.
	Generate(ctx context.Context, rc services.RequestContext, prompt string) (string, error)
	// History returns a page of the user's archived generations and the total.
	History(ctx context.Context, userID string, page, pageSize int) ([]domain.GenerationHistory, int64, error)
	// CompleteGeneration resolves a webhook completion against the pending store.
	CompleteGeneration(ctx context.Context, id, output string) (*domain.PendingGeneration, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for generations and webhook callbacks.
// It depends on the abstract service interface to keep transport concerns
// separate from business logic.
type Handlers struct {
	gifSvc GifService
}

// New constructs and returns a Handlers instance bound to the given service.
func New(gifSvc GifService) *Handlers {
	return &Handlers{gifSvc: gifSvc}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to the "X-User-ID" header (tests use
// it), and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// GenerateRequest is the JSON payload for the generation endpoints.
type GenerateRequest struct {
	// Prompt is the text describing the GIF. It must be non-empty.
	Prompt string `json:"prompt" binding:"required,min=1" example:"a corgi surfing a wave"`
	// RoomID identifies the room the result should be delivered to.
	RoomID string `json:"room_id" binding:"required" example:"GENERAL"`
	// ThreadID optionally pins notifications to a message thread.
	ThreadID string `json:"thread_id" example:"msg-42"`
}

// GenerateResponse acknowledges an asynchronous dispatch.
type GenerateResponse struct {
	// PredictionID correlates the eventual webhook callback.
	PredictionID string `json:"prediction_id" example:"pred-8xk2v"`
}

// PreviewResponse carries the outcome of a synchronous preview.
//
// Status is "done" when URL holds a result and "loading" when this request
// was superseded by a newer one or the service settled without output.
type PreviewResponse struct {
	Status string `json:"status" example:"done"`
	URL    string `json:"url,omitempty" example:"https://cdn.example.com/out.gif"`
}

// VariationsResponse carries debounced prompt suggestions.
type VariationsResponse struct {
	Status     string                 `json:"status" example:"done"`
	Variations []moderation.Variation `json:"variations,omitempty"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListHistoryResponse wraps a page of archived generations.
type ListHistoryResponse struct {
	History    []domain.GenerationHistory `json:"history"`
	Pagination Pagination                 `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// requestContext assembles the chat context of this interaction from the
// authenticated user and the request payload.
func requestContext(c *gin.Context, req GenerateRequest) services.RequestContext {
	return services.RequestContext{
		Sender:   chat.User{ID: userID(c)},
		Room:     chat.Room{ID: strings.TrimSpace(req.RoomID)},
		ThreadID: strings.TrimSpace(req.ThreadID),
	}
}

// bindGenerate binds and normalizes the shared generation payload. On failure
// it writes the error response and returns false.
func bindGenerate(c *gin.Context) (GenerateRequest, bool) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "prompt and room_id required")
		return req, false
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "prompt required")
		return req, false
	}
	return req, true
}

// failGeneration maps generation-flow errors onto the error envelope.
func failGeneration(c *gin.Context, err error) {
	var modErr *services.ModerationRejectedError
	var svcErr *generation.ServiceError
	switch {
	case errors.As(err, &modErr):
		fail(c, http.StatusUnprocessableEntity, ErrCodeModerationRejected, modErr.Error())
	case errors.Is(err, services.ErrPreferencesInvalid):
		fail(c, http.StatusUnprocessableEntity, ErrCodePreferencesInvalid, "generation preferences are missing or malformed")
	case errors.As(err, &svcErr):
		fail(c, http.StatusBadGateway, ErrCodeGenerateFailed, svcErr.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeGenerateFailed, err.Error())
	}
}

//
// Handlers
//

// PostGif godoc
// @ID          postGif
// @Summary     Dispatch an asynchronous GIF generation
// @Description Moderates the prompt, dispatches a webhook-completed generation,
// @Description and records the pending request for later callback resolution.
// @Tags        Gifs
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.GenerateRequest  true  "Generation payload"
//
// @Success     202  {object}  handlers.GenerateResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     422  {object}  handlers.ErrorResponse  "Moderation or preferences rejection"
// @Failure     502  {object}  handlers.ErrorResponse  "Generation service error"
// @Router      /gifs [post]
func (h *Handlers) PostGif(c *gin.Context) {
	req, okReq := bindGenerate(c)
	if !okReq {
		return
	}

	id, err := h.gifSvc.Generate(c.Request.Context(), requestContext(c, req), req.Prompt)
	if err != nil {
		failGeneration(c, err)
		return
	}
	ok(c, http.StatusAccepted, GenerateResponse{PredictionID: id})
}

// PreviewGif godoc
// @ID          previewGif
// @Summary     Generate a GIF synchronously (debounced)
// @Description Runs a debounced synchronous generation. Requests superseded by
// @Description a newer one in the same debounce slot answer 202 with status "loading".
// @Tags        Gifs
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.GenerateRequest  true  "Generation payload"
//
// @Success     200  {object}  handlers.PreviewResponse  "Result ready"
// @Success     202  {object}  handlers.PreviewResponse  "Superseded or no result"
// @Failure     400  {object}  handlers.ErrorResponse    "Bad request"
// @Failure     422  {object}  handlers.ErrorResponse    "Moderation or preferences rejection"
// @Router      /gifs/preview [post]
func (h *Handlers) PreviewGif(c *gin.Context) {
	req, okReq := bindGenerate(c)
	if !okReq {
		return
	}

	url, done, err := h.gifSvc.Preview(c.Request.Context(), requestContext(c, req), req.Prompt)
	if err != nil {
		failGeneration(c, err)
		return
	}
	if !done {
		accepted(c, PreviewResponse{Status: "loading"})
		return
	}
	ok(c, http.StatusOK, PreviewResponse{Status: "done", URL: url})
}

// SuggestGif godoc
// @ID          suggestGif
// @Summary     Suggest prompt variations (debounced)
// @Description Returns alternative phrasings for a prompt. Uses its own debounce
// @Description slot, independent of previews.
// @Tags        Gifs
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.GenerateRequest  true  "Prompt payload"
//
// @Success     200  {object}  handlers.VariationsResponse "Variations ready"
// @Success     202  {object}  handlers.VariationsResponse "Superseded"
// @Failure     400  {object}  handlers.ErrorResponse      "Bad request"
// @Router      /gifs/variations [post]
func (h *Handlers) SuggestGif(c *gin.Context) {
	req, okReq := bindGenerate(c)
	if !okReq {
		return
	}

	vars, done, err := h.gifSvc.Suggest(c.Request.Context(), requestContext(c, req), req.Prompt)
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeGenerateFailed, err.Error())
		return
	}
	if !done {
		accepted(c, VariationsResponse{Status: "loading"})
		return
	}
	ok(c, http.StatusOK, VariationsResponse{Status: "done", Variations: vars})
}

// ListHistory godoc
// @ID          listHistory
// @Summary     List archived generations (paginated)
// @Description Returns a page of the user's generation history, newest first.
// @Tags        Gifs
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       page       query   int     false "Page number"            minimum(1) default(1)
// @Param       page_size  query   int     false "Items per page"         minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListHistoryResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /gifs/history [get]
func (h *Handlers) ListHistory(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.gifSvc.History(c.Request.Context(), userID(c), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListHistoryResponse{
		History: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
