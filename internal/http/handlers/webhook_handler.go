// Webhook HTTP handlers.
//
// This file exposes the completion callback endpoint:
//   - POST /webhooks/gif-status (resolve an asynchronous generation)
//
// The generation service calls this endpoint when a webhook-dispatched
// prediction finishes. The handler validates the payload, delegates the
// delivery protocol to the application service, and answers 404 when the id
// is unknown or the recorded chat context can no longer be resolved.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-gif-backend/internal/services"
)

// WebhookRequest is the completion payload posted by the generation service.
type WebhookRequest struct {
	// ID is the prediction id assigned at dispatch time.
	ID string `json:"id" binding:"required" example:"pred-8xk2v"`
	// Output is the URL of the produced asset.
	Output string `json:"output" binding:"required" example:"https://cdn.example.com/out.gif"`
}

// WebhookResponse echoes the resolved completion.
type WebhookResponse struct {
	ID     string `json:"id" example:"pred-8xk2v"`
	Output string `json:"output" example:"https://cdn.example.com/out.gif"`
	UserID string `json:"user_id" example:"user123"`
	RoomID string `json:"room_id" example:"GENERAL"`
}

// PostGifStatus godoc
// @ID          postGifStatus
// @Summary     Resolve a completed generation
// @Description Correlates the callback with its pending request, delivers the
// @Description asset into the originating room, and archives it to history.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.WebhookRequest  true  "Completion payload"
//
// @Success     200  {object}  handlers.WebhookResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown id or unresolvable context"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /webhooks/gif-status [post]
func (h *Handlers) PostGifStatus(c *gin.Context) {
	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id and output required")
		return
	}
	req.ID = strings.TrimSpace(req.ID)
	req.Output = strings.TrimSpace(req.Output)

	rec, err := h.gifSvc.CompleteGeneration(c.Request.Context(), req.ID, req.Output)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPendingNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "no pending generation for that id")
		case errors.Is(err, services.ErrChatContextNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "originating user or room no longer exists")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, WebhookResponse{
		ID:     req.ID,
		Output: req.Output,
		UserID: rec.UserID,
		RoomID: rec.RoomID,
	})
}
