package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/tbourn/go-gif-backend/internal/domain"
	"github.com/tbourn/go-gif-backend/internal/services"
)

func TestPostGifStatus_Delivers(t *testing.T) {
	svc := stubGifSvc{
		complete: func(_ context.Context, id, output string) (*domain.PendingGeneration, error) {
			if id != "pred-7" || output != "https://cdn.example.com/out.gif" {
				t.Fatalf("params: id=%q output=%q", id, output)
			}
			return &domain.PendingGeneration{ID: id, UserID: "u1", RoomID: "r1"}, nil
		},
	}
	r := newGifRouter(svc)

	w := postJSON(r, "/webhooks/gif-status", `{"id":"pred-7","output":"https://cdn.example.com/out.gif"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("webhook -> %d body=%s", w.Code, w.Body.String())
	}
	var out WebhookResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.ID != "pred-7" || out.UserID != "u1" || out.RoomID != "r1" {
		t.Fatalf("body = %+v", out)
	}
}

func TestPostGifStatus_BadPayload(t *testing.T) {
	r := newGifRouter(stubGifSvc{})

	for _, body := range []string{"{bad", `{"id":"pred-7"}`, `{"output":"https://x"}`} {
		if w := postJSON(r, "/webhooks/gif-status", body); w.Code != http.StatusBadRequest {
			t.Errorf("body %q -> %d", body, w.Code)
		}
	}
}

func TestPostGifStatus_NotFound(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"unknown id", services.ErrPendingNotFound},
		{"unresolvable context", services.ErrChatContextNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := stubGifSvc{
				complete: func(context.Context, string, string) (*domain.PendingGeneration, error) {
					return nil, tc.err
				},
			}
			r := newGifRouter(svc)
			w := postJSON(r, "/webhooks/gif-status", `{"id":"ghost","output":"https://x"}`)
			if w.Code != http.StatusNotFound {
				t.Fatalf("-> %d", w.Code)
			}
			var out ErrorResponse
			_ = json.Unmarshal(w.Body.Bytes(), &out)
			if out.Code != ErrCodeNotFound {
				t.Fatalf("code = %q", out.Code)
			}
		})
	}
}

func TestPostGifStatus_Internal(t *testing.T) {
	svc := stubGifSvc{
		complete: func(context.Context, string, string) (*domain.PendingGeneration, error) {
			return nil, errors.New("db down")
		},
	}
	r := newGifRouter(svc)
	if w := postJSON(r, "/webhooks/gif-status", `{"id":"x","output":"https://x"}`); w.Code != http.StatusInternalServerError {
		t.Fatalf("-> %d", w.Code)
	}
}
