package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-gif-backend/internal/domain"
	"github.com/tbourn/go-gif-backend/internal/generation"
	"github.com/tbourn/go-gif-backend/internal/moderation"
	"github.com/tbourn/go-gif-backend/internal/services"
)

// Flexible service stub; unset hooks return benign defaults.
type stubGifSvc struct {
	preview  func(context.Context, services.RequestContext, string) (string, bool, error)
	suggest  func(context.Context, services.RequestContext, string) ([]moderation.Variation, bool, error)
	generate func(context.Context, services.RequestContext, string) (string, error)
	history  func(context.Context, string, int, int) ([]domain.GenerationHistory, int64, error)
	complete func(context.Context, string, string) (*domain.PendingGeneration, error)
}

func (s stubGifSvc) Preview(ctx context.Context, rc services.RequestContext, p string) (string, bool, error) {
	if s.preview != nil {
		return s.preview(ctx, rc, p)
	}
	return "", false, nil
}

func (s stubGifSvc) Suggest(ctx context.Context, rc services.RequestContext, p string) ([]moderation.Variation, bool, error) {
	if s.suggest != nil {
		return s.suggest(ctx, rc, p)
	}
	return nil, false, nil
}

func (s stubGifSvc) Generate(ctx context.Context, rc services.RequestContext, p string) (string, error) {
	if s.generate != nil {
		return s.generate(ctx, rc, p)
	}
	return "pred-1", nil
}

func (s stubGifSvc) History(ctx context.Context, uid string, page, pageSize int) ([]domain.GenerationHistory, int64, error) {
	if s.history != nil {
		return s.history(ctx, uid, page, pageSize)
	}
	return nil, 0, nil
}

func (s stubGifSvc) CompleteGeneration(ctx context.Context, id, output string) (*domain.PendingGeneration, error) {
	if s.complete != nil {
		return s.complete(ctx, id, output)
	}
	return &domain.PendingGeneration{ID: id}, nil
}

func newGifRouter(svc GifService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(svc)
	r := gin.New()
	r.POST("/gifs", h.PostGif)
	r.POST("/gifs/preview", h.PreviewGif)
	r.POST("/gifs/variations", h.SuggestGif)
	r.GET("/gifs/history", h.ListHistory)
	r.POST("/webhooks/gif-status", h.PostGifStatus)
	return r
}

func postJSON(r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	return w
}

// ---------- helpers-only tests ----------

func Test_userID_and_clampPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rc := gin.CreateTestContextOnly(httptest.NewRecorder(), gin.New())
	if got := userID(rc); got != "demo-user" {
		t.Fatalf("fallback userID = %q", got)
	}
	rc.Set("userID", "u1")
	if got := userID(rc); got != "u1" {
		t.Fatalf("ctx userID = %q", got)
	}

	cH, _ := gin.CreateTestContext(httptest.NewRecorder())
	reqH := httptest.NewRequest("GET", "/", nil)
	reqH.Header.Set("X-User-ID", "u-123")
	cH.Request = reqH
	if got := userID(cH); got != "u-123" {
		t.Fatalf("header fallback userID = %q", got)
	}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?page=-5&page_size=9999", nil)
	p, ps := clampPagination(c)
	if p != 1 || ps != 100 {
		t.Fatalf("clamp bounds got p=%d ps=%d", p, ps)
	}
}

// ---------- PostGif ----------

func TestPostGif(t *testing.T) {
	// Bad JSON -> 400
	{
		r := newGifRouter(stubGifSvc{})
		w := postJSON(r, "/gifs", "{bad")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("bad json -> %d", w.Code)
		}
	}

	// Success -> 202 with prediction id; request context assembled from payload
	{
		var gotRC services.RequestContext
		svc := stubGifSvc{
			generate: func(_ context.Context, rc services.RequestContext, p string) (string, error) {
				gotRC = rc
				return "pred-9", nil
			},
		}
		r := newGifRouter(svc)
		w := postJSON(r, "/gifs", `{"prompt":"a corgi","room_id":"GENERAL","thread_id":"t1"}`)
		if w.Code != http.StatusAccepted {
			t.Fatalf("generate -> %d body=%s", w.Code, w.Body.String())
		}
		var out GenerateResponse
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil || out.PredictionID != "pred-9" {
			t.Fatalf("body = %s (%v)", w.Body.String(), err)
		}
		if gotRC.Sender.ID != "u1" || gotRC.Room.ID != "GENERAL" || gotRC.ThreadID != "t1" {
			t.Fatalf("request context = %+v", gotRC)
		}
	}

	// Moderation rejection -> 422 moderation_rejected
	{
		svc := stubGifSvc{
			generate: func(context.Context, services.RequestContext, string) (string, error) {
				return "", &services.ModerationRejectedError{Words: []string{"darn"}}
			},
		}
		r := newGifRouter(svc)
		w := postJSON(r, "/gifs", `{"prompt":"darn","room_id":"GENERAL"}`)
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("moderated -> %d", w.Code)
		}
		var out ErrorResponse
		_ = json.Unmarshal(w.Body.Bytes(), &out)
		if out.Code != ErrCodeModerationRejected {
			t.Fatalf("code = %q", out.Code)
		}
	}

	// Missing preferences -> 422 preferences_invalid
	{
		svc := stubGifSvc{
			generate: func(context.Context, services.RequestContext, string) (string, error) {
				return "", services.ErrPreferencesInvalid
			},
		}
		r := newGifRouter(svc)
		w := postJSON(r, "/gifs", `{"prompt":"p","room_id":"GENERAL"}`)
		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("prefs -> %d", w.Code)
		}
	}

	// Upstream service failure -> 502
	{
		svc := stubGifSvc{
			generate: func(context.Context, services.RequestContext, string) (string, error) {
				return "", &generation.ServiceError{Status: domain.StatusFailed, Message: "NSFW content detected"}
			},
		}
		r := newGifRouter(svc)
		w := postJSON(r, "/gifs", `{"prompt":"p","room_id":"GENERAL"}`)
		if w.Code != http.StatusBadGateway {
			t.Fatalf("service err -> %d", w.Code)
		}
	}
}

// ---------- PreviewGif ----------

func TestPreviewGif(t *testing.T) {
	// Result ready -> 200 done
	{
		svc := stubGifSvc{
			preview: func(context.Context, services.RequestContext, string) (string, bool, error) {
				return "https://cdn.example.com/out.gif", true, nil
			},
		}
		r := newGifRouter(svc)
		w := postJSON(r, "/gifs/preview", `{"prompt":"a corgi","room_id":"GENERAL"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("preview -> %d", w.Code)
		}
		var out PreviewResponse
		_ = json.Unmarshal(w.Body.Bytes(), &out)
		if out.Status != "done" || out.URL != "https://cdn.example.com/out.gif" {
			t.Fatalf("body = %+v", out)
		}
	}

	// Superseded -> 202 loading
	{
		r := newGifRouter(stubGifSvc{})
		w := postJSON(r, "/gifs/preview", `{"prompt":"a corgi","room_id":"GENERAL"}`)
		if w.Code != http.StatusAccepted {
			t.Fatalf("superseded -> %d", w.Code)
		}
		var out PreviewResponse
		_ = json.Unmarshal(w.Body.Bytes(), &out)
		if out.Status != "loading" || out.URL != "" {
			t.Fatalf("body = %+v", out)
		}
	}
}

// ---------- SuggestGif ----------

func TestSuggestGif(t *testing.T) {
	svc := stubGifSvc{
		suggest: func(context.Context, services.RequestContext, string) ([]moderation.Variation, bool, error) {
			return []moderation.Variation{{Prompt: "an astronaut corgi"}}, true, nil
		},
	}
	r := newGifRouter(svc)
	w := postJSON(r, "/gifs/variations", `{"prompt":"corgi","room_id":"GENERAL"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("variations -> %d", w.Code)
	}
	var out VariationsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if len(out.Variations) != 1 || out.Variations[0].Prompt != "an astronaut corgi" {
		t.Fatalf("body = %+v", out)
	}
}

// ---------- ListHistory ----------

func TestListHistory(t *testing.T) {
	svc := stubGifSvc{
		history: func(_ context.Context, uid string, page, pageSize int) ([]domain.GenerationHistory, int64, error) {
			if uid != "u1" || page != 1 || pageSize != 20 {
				t.Fatalf("params: uid=%q page=%d size=%d", uid, page, pageSize)
			}
			return []domain.GenerationHistory{
				{ID: 2, UserID: uid, Query: "b", URL: "https://b"},
				{ID: 1, UserID: uid, Query: "a", URL: "https://a"},
			}, 2, nil
		},
	}
	r := newGifRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/gifs/history", nil)
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("history -> %d", w.Code)
	}
	var out ListHistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(out.History) != 2 || out.History[0].Query != "b" {
		t.Fatalf("history = %+v", out.History)
	}
	if out.Pagination.Total != 2 || out.Pagination.HasNext {
		t.Fatalf("pagination = %+v", out.Pagination)
	}

	// Service failure -> 500
	r = newGifRouter(stubGifSvc{
		history: func(context.Context, string, int, int) ([]domain.GenerationHistory, int64, error) {
			return nil, 0, errors.New("db down")
		},
	})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/gifs/history", nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("history err -> %d", w.Code)
	}
}
