package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/appstruct/internal/domain"
	"github.com/Rrens/appstruct/internal/llm"
	"github.com/Rrens/appstruct/internal/observability"
	"github.com/Rrens/appstruct/internal/security"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// BlueprintService generates, saves and lists blueprints
type BlueprintService struct {
	provider  llm.Provider
	repo      domain.BlueprintRepository
	cache     domain.BlueprintCache
	validator *security.Validator
	events    observability.Sink
	now       func() time.Time
}

// NewBlueprintService creates a new blueprint service. cache and events may be nil.
func NewBlueprintService(
	provider llm.Provider,
	repo domain.BlueprintRepository,
	cache domain.BlueprintCache,
	validator *security.Validator,
	events observability.Sink,
) *BlueprintService {
	return &BlueprintService{
		provider:  provider,
		repo:      repo,
		cache:     cache,
		validator: validator,
		events:    events,
		now:       time.Now,
	}
}

// ProviderName returns the name of the bound provider
func (s *BlueprintService) ProviderName() string {
	return s.provider.Name()
}

func (s *BlueprintService) prepare(input *domain.GenerateInput) (llm.Request, error) {
	input.Normalize()
	if err := s.validator.Struct(input); err != nil {
		return llm.Request{}, err
	}
	return llm.BuildRequest(input.Idea, input.Platform, input.DetailLevel), nil
}

// Generate produces the whole blueprint in one call. When input.Save is set
// the result is persisted; a failed save is logged and reported through
// Saved=false, never as an error.
func (s *BlueprintService) Generate(ctx context.Context, userID string, input domain.GenerateInput) (*domain.GenerateResult, error) {
	req, err := s.prepare(&input)
	if err != nil {
		return nil, err
	}

	s.started(ctx, userID, input, "whole")

	resp, err := s.provider.Generate(ctx, req)
	if err != nil {
		s.failed(ctx, userID, err)
		return nil, err
	}
	if strings.TrimSpace(resp.Text) == "" {
		err := llm.NewInvalidResponse(s.provider.Name(), "empty text")
		s.failed(ctx, userID, err)
		return nil, err
	}

	observability.Emit(ctx, s.events, observability.EventGenerateCompleted, userID, map[string]any{
		"provider":    s.provider.Name(),
		"model":       resp.Model,
		"tokens_used": resp.TokensUsed,
		"latency_ms":  resp.LatencyMs,
	})

	result := &domain.GenerateResult{Markdown: resp.Text}
	if !input.Save {
		return result, nil
	}

	saved := false
	blueprint, err := s.Save(ctx, userID, domain.BlueprintCreate{
		IdeaInput:         input.Idea,
		Platform:          input.Platform,
		GeneratedMarkdown: resp.Text,
		DetailLevel:       input.DetailLevel,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to save generated blueprint")
		observability.Emit(ctx, s.events, observability.EventBlueprintSaveFailed, userID, map[string]any{
			"error": err.Error(),
		})
	} else {
		saved = true
		result.Blueprint = blueprint
	}
	result.Saved = &saved

	return result, nil
}

// GenerateStream forwards fragments to emit in arrival order. Input is
// validated before the provider is contacted. Cancelling ctx aborts the
// upstream request.
func (s *BlueprintService) GenerateStream(ctx context.Context, userID string, input domain.GenerateInput, emit llm.EmitFunc) error {
	req, err := s.prepare(&input)
	if err != nil {
		return err
	}

	s.started(ctx, userID, input, "stream")

	start := s.now()
	fragments, size := 0, 0
	err = s.provider.GenerateStream(ctx, req, func(fragment string) error {
		fragments++
		size += len(fragment)
		return emit(fragment)
	})
	if err == nil && fragments == 0 {
		err = llm.NewInvalidResponse(s.provider.Name(), "stream produced no text")
	}

	switch {
	case err == nil:
		observability.Emit(ctx, s.events, observability.EventGenerateCompleted, userID, map[string]any{
			"provider":   s.provider.Name(),
			"fragments":  fragments,
			"bytes":      size,
			"latency_ms": s.now().Sub(start).Milliseconds(),
		})
		return nil
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		log.Info().Str("user_id", userID).Int("fragments", fragments).Msg("Blueprint stream aborted")
		observability.Emit(ctx, s.events, observability.EventStreamAborted, userID, map[string]any{
			"provider":  s.provider.Name(),
			"fragments": fragments,
		})
		return err
	default:
		s.failed(ctx, userID, err)
		return err
	}
}

// Save validates and persists a blueprint, then drops the user's cached listing
func (s *BlueprintService) Save(ctx context.Context, userID string, input domain.BlueprintCreate) (*domain.Blueprint, error) {
	input.Normalize()
	if err := s.validator.Struct(input); err != nil {
		return nil, err
	}

	// v7 ids sort by creation time, which breaks createdAt ties in listings
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate blueprint id: %w", err)
	}

	blueprint := &domain.Blueprint{
		ID:                id.String(),
		UserID:            userID,
		IdeaInput:         input.IdeaInput,
		Platform:          input.Platform,
		GeneratedMarkdown: input.GeneratedMarkdown,
		DetailLevel:       input.DetailLevel,
		CreatedAt:         s.now().UTC(),
	}

	if err := s.repo.Create(ctx, blueprint); err != nil {
		return nil, fmt.Errorf("failed to save blueprint: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Failed to invalidate blueprint cache")
		}
	}

	observability.Emit(ctx, s.events, observability.EventBlueprintSaved, userID, map[string]any{
		"blueprint_id": blueprint.ID,
		"platform":     string(blueprint.Platform),
	})

	return blueprint, nil
}

// List returns the user's blueprints newest first. A listing read from the
// store is cached only if no Save invalidated the user's cache meanwhile.
func (s *BlueprintService) List(ctx context.Context, userID string) ([]domain.Blueprint, error) {
	cacheable := false
	var version int64
	if s.cache != nil {
		cached, ok, v, err := s.cache.Get(ctx, userID)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("user_id", userID).Msg("Blueprint cache read failed")
		case ok:
			return cached, nil
		default:
			cacheable, version = true, v
		}
	}

	blueprints, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blueprints: %w", err)
	}

	if cacheable {
		if err := s.cache.Set(ctx, userID, version, blueprints); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("Blueprint cache write failed")
		}
	}

	return blueprints, nil
}

func (s *BlueprintService) started(ctx context.Context, userID string, input domain.GenerateInput, mode string) {
	detail := input.DetailLevel
	if detail == "" {
		detail = domain.DetailFull
	}
	observability.Emit(ctx, s.events, observability.EventGenerateStarted, userID, map[string]any{
		"provider":     s.provider.Name(),
		"mode":         mode,
		"platform":     string(input.Platform),
		"detail_level": string(detail),
		"idea_length":  len([]rune(input.Idea)),
	})
}

// failed logs the full provider detail; callers only ever see the error kind
func (s *BlueprintService) failed(ctx context.Context, userID string, err error) {
	kind := llm.KindOf(err)
	log.Error().
		Err(err).
		Str("user_id", userID).
		Str("provider", s.provider.Name()).
		Str("kind", string(kind)).
		Msg("Blueprint generation failed")
	observability.Emit(ctx, s.events, observability.EventGenerateFailed, userID, map[string]any{
		"provider": s.provider.Name(),
		"kind":     string(kind),
	})
}
