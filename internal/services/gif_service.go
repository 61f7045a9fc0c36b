// Package services – GifService
//
// This file implements GifService, the application-level component that owns
// the GIF generation flows:
//
//   - Preview: moderation gate, then a debounced synchronous generation that
//     polls the service until the prediction settles.
//   - Suggest: a debounced prompt-variation request with its own slot, so
//     preview bursts and suggestion bursts never supersede each other.
//   - Generate: the asynchronous path; dispatches with a webhook and persists
//     a pending record that the completion callback later resolves.
//   - CompleteGeneration: resolves a webhook callback against the pending
//     store, delivers the asset into the room, and archives it to history.
//
// Observability: public methods are OpenTelemetry-instrumented; spans include
// user identifiers. Generation outcomes are counted with Prometheus.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-gif-backend/internal/chat"
	"github.com/tbourn/go-gif-backend/internal/config"
	"github.com/tbourn/go-gif-backend/internal/debounce"
	"github.com/tbourn/go-gif-backend/internal/domain"
	"github.com/tbourn/go-gif-backend/internal/generation"
	"github.com/tbourn/go-gif-backend/internal/moderation"
	"github.com/tbourn/go-gif-backend/internal/repo"
)

// generationsTotal counts generation outcomes by completion mode.
var generationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gif_generations_total",
		Help: "Total GIF generation outcomes by mode and result.",
	},
	[]string{"mode", "outcome"},
)

func init() {
	prometheus.MustRegister(generationsTotal)
}

// User-facing messages for the settings gate and moderation rejections.
const (
	msgAPIKeyNotSet       = "The generation API key is not configured. Ask a workspace admin to set it."
	msgWebhookURLNotSet   = "The generation webhook URL is not configured. Ask a workspace admin to set it."
	msgAPIURLNotSet       = "The generation API URL is not configured. Ask a workspace admin to set it."
	msgModelVersionNotSet = "The generation model version is not configured. Ask a workspace admin to set it."
)

// Generator is the outbound generation client consumed by GifService.
type Generator interface {
	// Generate dispatches a prediction for webhook completion.
	Generate(ctx context.Context, prompt string) (*generation.Prediction, error)
	// SyncGenerate dispatches and polls until terminal; "" means no result.
	SyncGenerate(ctx context.Context, prompt string) (string, error)
}

// PromptClient is the moderation / prompt-variation service.
type PromptClient interface {
	CheckProfanity(ctx context.Context, prompt, userID string) (*moderation.ProfanityResult, error)
	Variations(ctx context.Context, prompt, userID string) ([]moderation.Variation, error)
}

// RequestContext carries the chat context of one user interaction explicitly
// through the service layer: who asked, in which room, on which thread.
type RequestContext struct {
	Sender   chat.User
	Room     chat.Room
	ThreadID string
}

// previewArgs / suggestArgs are the payloads flowing through the debounce
// slots; only the last burst member's payload reaches the operation.
type previewArgs struct {
	rc     RequestContext
	prompt string
}

type suggestArgs struct {
	rc     RequestContext
	prompt string
}

// GifService coordinates the generation flows against the injected
// collaborators. Construct with NewGifService.
type GifService struct {
	DB        *gorm.DB
	Generator Generator
	Prompts   PromptClient
	Messenger chat.Messenger
	Uploader  chat.Uploader
	Directory chat.Directory
	Prefs     config.GenerationConfig

	// Scope selects the debounce correlation key (global, user, room).
	Scope string

	// FetchAsset retrieves the produced asset; overridable in tests.
	FetchAsset func(ctx context.Context, url string) ([]byte, error)

	preview *debounce.Coalescer[previewArgs, string]
	suggest *debounce.Coalescer[suggestArgs, []moderation.Variation]
}

// NewGifService wires a GifService and its two independent debounce slots.
func NewGifService(db *gorm.DB, gen Generator, prompts PromptClient,
	messenger chat.Messenger, uploader chat.Uploader, directory chat.Directory,
	prefs config.GenerationConfig, dbc config.DebounceConfig) *GifService {

	s := &GifService{
		DB:         db,
		Generator:  gen,
		Prompts:    prompts,
		Messenger:  messenger,
		Uploader:   uploader,
		Directory:  directory,
		Prefs:      prefs,
		Scope:      dbc.Scope,
		FetchAsset: fetchAssetHTTP,
	}
	s.preview = debounce.New(func(ctx context.Context, a previewArgs) (string, error) {
		return s.Generator.SyncGenerate(ctx, a.prompt)
	}, dbc.Delay)
	s.suggest = debounce.New(func(ctx context.Context, a suggestArgs) ([]moderation.Variation, error) {
		return s.Prompts.Variations(ctx, a.prompt, a.rc.Sender.ID)
	}, dbc.Delay)
	return s
}

// ValidatePreferences checks the generation settings in a fixed order and
// short-circuits on the first missing value or malformed URL. The requesting
// user is notified with a self-visible message describing the first failure.
func (s *GifService) ValidatePreferences(ctx context.Context, rc RequestContext) bool {
	settings := []struct {
		name    string
		value   string
		message string
		isURL   bool
	}{
		{"GEN_API_KEY", s.Prefs.APIKey, msgAPIKeyNotSet, false},
		{"GEN_WEBHOOK_URL", s.Prefs.WebhookURL, msgWebhookURLNotSet, true},
		{"GEN_API_URL", s.Prefs.APIURL, msgAPIURLNotSet, true},
		{"GEN_MODEL_VERSION", s.Prefs.ModelVersion, msgModelVersionNotSet, false},
	}

	for _, st := range settings {
		if strings.TrimSpace(st.value) == "" {
			log.Warn().Str("setting", st.name).Msg("generation preference missing")
			s.notify(ctx, rc, st.message)
			return false
		}
		if st.isURL {
			if _, err := url.ParseRequestURI(st.value); err != nil {
				msg := fmt.Sprintf("Invalid URL assigned to %s: %s", st.name, st.value)
				log.Warn().Str("setting", st.name).Msg("generation preference malformed")
				s.notify(ctx, rc, msg)
				return false
			}
		}
	}
	return true
}

// Preview runs the moderated, debounced synchronous generation.
//
// ok=false with a nil error means the call was superseded by a newer preview
// (or the service settled without an output); the caller should render a
// "still loading" state. A successful result is archived to the requesting
// user's history.
func (s *GifService) Preview(ctx context.Context, rc RequestContext, prompt string) (string, bool, error) {
	tr := otel.Tracer("services/GifService")
	ctx, span := tr.Start(ctx, "Preview",
		trace.WithAttributes(attribute.String("user.id", rc.Sender.ID)),
	)
	defer span.End()

	if err := s.moderate(ctx, rc, prompt); err != nil {
		return "", false, err
	}
	if !s.ValidatePreferences(ctx, rc) {
		return "", false, ErrPreferencesInvalid
	}

	out, ok, err := s.preview.Do(ctx, s.slotKey(rc), previewArgs{rc: rc, prompt: prompt})
	switch {
	case err != nil:
		generationsTotal.WithLabelValues("sync", "error").Inc()
		return "", false, err
	case !ok || out == "":
		generationsTotal.WithLabelValues("sync", "no_result").Inc()
		return "", false, nil
	}

	generationsTotal.WithLabelValues("sync", "succeeded").Inc()
	if _, err := repo.AddHistory(ctx, s.DB, rc.Sender.ID, prompt, out); err != nil {
		log.Error().Err(err).Str("user_id", rc.Sender.ID).Msg("archive preview result")
	}
	return out, true, nil
}

// Suggest runs the debounced prompt-variation request on its own slot.
func (s *GifService) Suggest(ctx context.Context, rc RequestContext, prompt string) ([]moderation.Variation, bool, error) {
	tr := otel.Tracer("services/GifService")
	ctx, span := tr.Start(ctx, "Suggest",
		trace.WithAttributes(attribute.String("user.id", rc.Sender.ID)),
	)
	defer span.End()

	return s.suggest.Do(ctx, s.slotKey(rc), suggestArgs{rc: rc, prompt: prompt})
}

// Generate dispatches an asynchronous generation and persists the pending
// record that correlates the eventual webhook callback with this request.
// It returns the service-assigned prediction id.
func (s *GifService) Generate(ctx context.Context, rc RequestContext, prompt string) (string, error) {
	tr := otel.Tracer("services/GifService")
	ctx, span := tr.Start(ctx, "Generate",
		trace.WithAttributes(attribute.String("user.id", rc.Sender.ID)),
	)
	defer span.End()

	if err := s.moderate(ctx, rc, prompt); err != nil {
		return "", err
	}
	if !s.ValidatePreferences(ctx, rc) {
		return "", ErrPreferencesInvalid
	}

	pred, err := s.Generator.Generate(ctx, prompt)
	if err != nil {
		generationsTotal.WithLabelValues("async", "dispatch_failed").Inc()
		return "", err
	}

	rec := &domain.PendingGeneration{
		ID:       pred.ID,
		UserID:   rc.Sender.ID,
		RoomID:   rc.Room.ID,
		ThreadID: rc.ThreadID,
		Prompt:   prompt,
	}
	if err := repo.CreatePending(ctx, s.DB, rec); err != nil {
		return "", err
	}

	generationsTotal.WithLabelValues("async", "dispatched").Inc()
	return pred.ID, nil
}

// History returns a page of the user's archived generations, newest first.
func (s *GifService) History(ctx context.Context, userID string, page, pageSize int) ([]domain.GenerationHistory, int64, error) {
	tr := otel.Tracer("services/GifService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountHistory(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.GenerationHistory{}, 0, nil
	}

	items, err := repo.ListHistoryPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// CompleteGeneration resolves a webhook completion `{id, output}` against the
// pending store and delivers the result.
//
// Protocol:
//  1. Unknown id → ErrPendingNotFound; nothing else happens.
//  2. Unresolvable user or room → ErrChatContextNotFound; the pending record
//     is deliberately kept.
//  3. The asset is fetched and uploaded into the room under the original
//     sender's name; upload problems are logged, not fatal.
//  4. The pending record is deleted regardless of upload outcome.
//  5. The completion is archived to the sender's history.
func (s *GifService) CompleteGeneration(ctx context.Context, id, output string) (*domain.PendingGeneration, error) {
	tr := otel.Tracer("services/GifService")
	ctx, span := tr.Start(ctx, "CompleteGeneration",
		trace.WithAttributes(attribute.String("prediction.id", id)),
	)
	defer span.End()

	rec, err := repo.GetPending(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrPendingNotFound
	}
	if err != nil {
		return nil, err
	}

	sender, err := s.Directory.UserByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return nil, ErrChatContextNotFound
		}
		return nil, err
	}
	room, err := s.Directory.RoomByID(ctx, rec.RoomID)
	if err != nil {
		if errors.Is(err, chat.ErrNotFound) {
			return nil, ErrChatContextNotFound
		}
		return nil, err
	}

	if data, err := s.FetchAsset(ctx, output); err != nil {
		log.Error().Err(err).Str("prediction_id", id).Msg("fetch generated asset")
	} else if err := s.Uploader.UploadFile(ctx, *room, *sender, uploadFilename(rec.Prompt), data); err != nil {
		log.Error().Err(err).Str("prediction_id", id).Msg("upload generated asset")
	}

	if _, err := repo.DeletePending(ctx, s.DB, id); err != nil {
		return nil, err
	}
	if _, err := repo.AddHistory(ctx, s.DB, rec.UserID, rec.Prompt, output); err != nil {
		return nil, err
	}

	generationsTotal.WithLabelValues("async", "delivered").Inc()
	return rec, nil
}

// moderate rejects a prompt the moderation service flags, notifying the user
// with the offending terms.
func (s *GifService) moderate(ctx context.Context, rc RequestContext, prompt string) error {
	res, err := s.Prompts.CheckProfanity(ctx, prompt, rc.Sender.ID)
	if err != nil {
		return err
	}
	if res.ContainsProfanity {
		s.notify(ctx, rc, fmt.Sprintf(
			"The text contains profanity. Please provide a different text.\nDetected words: %s",
			strings.Join(res.ProfaneWords, ", ")))
		return &ModerationRejectedError{Words: res.ProfaneWords}
	}
	return nil
}

// notify sends a self-visible message, logging delivery problems.
func (s *GifService) notify(ctx context.Context, rc RequestContext, text string) {
	if err := s.Messenger.SendSelfVisible(ctx, rc.Room, rc.Sender, rc.ThreadID, text); err != nil {
		log.Error().Err(err).Str("room_id", rc.Room.ID).Msg("send self-visible message")
	}
}

// slotKey derives the debounce correlation key from the configured scope.
func (s *GifService) slotKey(rc RequestContext) string {
	switch s.Scope {
	case "user":
		return "user:" + rc.Sender.ID
	case "room":
		return "room:" + rc.Room.ID
	default:
		return "global"
	}
}

// uploadFilename names an upload from the normalized prompt plus a
// nanosecond timestamp so repeated prompts never collide.
func uploadFilename(prompt string) string {
	base := strings.TrimSpace(norm.NFC.String(prompt))
	base = strings.ReplaceAll(base, "/", "-")
	return fmt.Sprintf("%s%d.gif", base, time.Now().UnixNano())
}

// fetchAssetHTTP is the default FetchAsset: a plain GET of the output URL.
func fetchAssetHTTP(ctx context.Context, assetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch asset: unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
