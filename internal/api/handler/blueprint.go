package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/Rrens/appstruct/internal/api/middleware"
	"github.com/Rrens/appstruct/internal/api/response"
	"github.com/Rrens/appstruct/internal/domain"
	"github.com/Rrens/appstruct/internal/service"
	"github.com/rs/zerolog/log"
)

// BlueprintHandler handles generation and blueprint history endpoints
type BlueprintHandler struct {
	blueprintService *service.BlueprintService
	streamTimeout    time.Duration
}

// NewBlueprintHandler creates a new blueprint handler. A zero streamTimeout
// leaves streams bounded only by the client connection.
func NewBlueprintHandler(blueprintService *service.BlueprintService, streamTimeout time.Duration) *BlueprintHandler {
	return &BlueprintHandler{
		blueprintService: blueprintService,
		streamTimeout:    streamTimeout,
	}
}

// Generate returns the whole blueprint as JSON
func (h *BlueprintHandler) Generate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		response.Unauthorized(w, response.MsgUnauthenticated)
		return
	}

	var input domain.GenerateInput
	if err := decodeJSON(w, r, &input); err != nil {
		response.BadRequest(w, response.MsgInvalidBody)
		return
	}

	result, err := h.blueprintService.Generate(r.Context(), user.ID, input)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.OK(w, result)
}

// GenerateStream writes markdown fragments as a chunked text/plain body.
// Headers are committed on the first fragment, so a failure before that
// still gets a JSON error response.
func (h *BlueprintHandler) GenerateStream(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		response.Unauthorized(w, response.MsgUnauthenticated)
		return
	}

	var input domain.GenerateInput
	if err := decodeJSON(w, r, &input); err != nil {
		response.BadRequest(w, response.MsgInvalidBody)
		return
	}

	ctx := r.Context()
	if h.streamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.streamTimeout)
		defer cancel()
	}

	rc := http.NewResponseController(w)
	started := false
	start := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
	}

	err := h.blueprintService.GenerateStream(ctx, user.ID, input, func(fragment string) error {
		start()
		if _, err := io.WriteString(w, fragment); err != nil {
			return err
		}
		// unsupported flush only means no incremental delivery
		_ = rc.Flush()
		return nil
	})

	if err == nil {
		start()
		return
	}
	if !started {
		response.FromError(w, r, err)
		return
	}

	// status is already on the wire; the truncated body is all the client gets
	log.Warn().Err(err).Str("user_id", user.ID).Msg("Blueprint stream ended early")
}

// Save persists a blueprint for the current user
func (h *BlueprintHandler) Save(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		response.Unauthorized(w, response.MsgUnauthenticated)
		return
	}

	var input domain.BlueprintCreate
	if err := decodeJSON(w, r, &input); err != nil {
		response.BadRequest(w, response.MsgInvalidBody)
		return
	}

	blueprint, err := h.blueprintService.Save(r.Context(), user.ID, input)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.Created(w, blueprint)
}

// List returns the current user's blueprints newest first
func (h *BlueprintHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		response.Unauthorized(w, response.MsgUnauthenticated)
		return
	}

	blueprints, err := h.blueprintService.List(r.Context(), user.ID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.OK(w, blueprints)
}
