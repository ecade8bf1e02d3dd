package domain

import (
	"context"
	"strings"
	"time"
)

// Platform is the target platform of an app idea
type Platform string

const (
	PlatformWeb    Platform = "web"
	PlatformMobile Platform = "mobile"
	PlatformBoth   Platform = "both"
)

// Valid reports whether p is one of the supported platforms
func (p Platform) Valid() bool {
	switch p {
	case PlatformWeb, PlatformMobile, PlatformBoth:
		return true
	}
	return false
}

// DetailLevel selects the brief or full blueprint template
type DetailLevel string

const (
	DetailBrief DetailLevel = "brief"
	DetailFull  DetailLevel = "full"
)

const (
	MinIdeaLength = 10
	MaxIdeaLength = 5000
)

// Blueprint is a persisted idea + generated markdown pair
type Blueprint struct {
	ID                string      `json:"id" bson:"_id"`
	UserID            string      `json:"userId" bson:"userId"`
	IdeaInput         string      `json:"ideaInput" bson:"ideaInput"`
	Platform          Platform    `json:"platform" bson:"platform"`
	GeneratedMarkdown string      `json:"generatedMarkdown" bson:"generatedMarkdown"`
	DetailLevel       DetailLevel `json:"detailLevel,omitempty" bson:"detailLevel,omitempty"`
	CreatedAt         time.Time   `json:"createdAt" bson:"createdAt"`
}

// BlueprintCreate represents the save request body
type BlueprintCreate struct {
	IdeaInput         string      `json:"ideaInput" validate:"required"`
	Platform          Platform    `json:"platform" validate:"required,oneof=web mobile both"`
	GeneratedMarkdown string      `json:"generatedMarkdown" validate:"required"`
	DetailLevel       DetailLevel `json:"detailLevel,omitempty" validate:"omitempty,oneof=brief full"`
}

// Normalize lower-cases the enumerations and trims the idea text.
// The markdown body is stored byte-for-byte.
func (b *BlueprintCreate) Normalize() {
	b.IdeaInput = strings.TrimSpace(b.IdeaInput)
	b.Platform = Platform(strings.ToLower(strings.TrimSpace(string(b.Platform))))
	b.DetailLevel = DetailLevel(strings.ToLower(strings.TrimSpace(string(b.DetailLevel))))
	if strings.TrimSpace(b.GeneratedMarkdown) == "" {
		b.GeneratedMarkdown = ""
	}
}

// GenerateInput represents a generation request
type GenerateInput struct {
	Idea        string      `json:"idea" validate:"required,min=10,max=5000"`
	Platform    Platform    `json:"platform" validate:"required,oneof=web mobile both"`
	DetailLevel DetailLevel `json:"detailLevel,omitempty" validate:"omitempty,oneof=brief full"`
	// Save persists the result after a successful whole-response generation
	Save bool `json:"save,omitempty"`
}

// Normalize trims the idea and lower-cases the enumerations
func (g *GenerateInput) Normalize() {
	g.Idea = strings.TrimSpace(g.Idea)
	g.Platform = Platform(strings.ToLower(strings.TrimSpace(string(g.Platform))))
	g.DetailLevel = DetailLevel(strings.ToLower(strings.TrimSpace(string(g.DetailLevel))))
}

// GenerateResult is the whole-response generation outcome
type GenerateResult struct {
	Markdown  string     `json:"markdown"`
	Saved     *bool      `json:"saved,omitempty"`
	Blueprint *Blueprint `json:"blueprint,omitempty"`
}

// BlueprintRepository defines the interface for blueprint storage
type BlueprintRepository interface {
	Create(ctx context.Context, blueprint *Blueprint) error
	ListByUser(ctx context.Context, userID string) ([]Blueprint, error)
}

// BlueprintCache caches per-user blueprint listings. Get reports the
// listing version it observed; Set is a no-op once Invalidate has moved
// the version past it.
type BlueprintCache interface {
	Get(ctx context.Context, userID string) (blueprints []Blueprint, ok bool, version int64, err error)
	Set(ctx context.Context, userID string, version int64, blueprints []Blueprint) error
	Invalidate(ctx context.Context, userID string) error
}
