package llm

import (
	"fmt"

	"github.com/Rrens/appstruct/internal/domain"
)

const (
	FullMaxTokens  = 4096
	BriefMaxTokens = 1500

	defaultTemperature = 0.7
)

const systemPrompt = "You are a senior software architect. You turn app ideas into precise, " +
	"actionable technical blueprints written in GitHub-flavored markdown."

const fullTemplate = `Generate a detailed technical blueprint for the following app idea:

App Idea: %s
Target Platform: %s

Please provide a comprehensive markdown document with the following sections:

# [App Name] Blueprint

## Project Summary
[Brief overview of the app concept and its main purpose]

## Tech Stack
- Frontend Technologies
- Backend Technologies
- Database
- DevOps/Deployment
- Third-party Services/APIs

## Core Features
[Detailed breakdown of main features with technical implementation notes]

## User Flows
[Key user journeys through the application]

## Data Models
[Database schema and relationships]

## API Endpoints
[List of main API routes and their purposes]

## Implementation Notes
[Technical considerations, potential challenges, and solutions]

## Development Timeline
[Estimated phases and milestones]

Please be specific, technical, and actionable in your response.`

const briefTemplate = `Generate a concise technical blueprint for the following app idea:

App Idea: %s
Target Platform: %s

Respond with a short markdown document containing only these sections:

# [App Name] Blueprint

## Project Summary
[Two or three sentences]

## Tech Stack
[One line each for frontend, backend and database]

## Core Features
[At most six bullet points]

## Implementation Notes
[At most four bullet points]

Keep it brief and actionable.`

// PlatformLabel renders the platform for the prompt
func PlatformLabel(p domain.Platform) string {
	switch p {
	case domain.PlatformWeb:
		return "Web"
	case domain.PlatformMobile:
		return "Mobile (iOS and Android)"
	case domain.PlatformBoth:
		return "Web and Mobile"
	}
	return string(p)
}

// BuildRequest substitutes idea and platform into the template selected by
// detail. It is deterministic; an empty detail level means full.
func BuildRequest(idea string, platform domain.Platform, detail domain.DetailLevel) Request {
	template, maxTokens := fullTemplate, FullMaxTokens
	if detail == domain.DetailBrief {
		template, maxTokens = briefTemplate, BriefMaxTokens
	}

	return Request{
		System:      systemPrompt,
		Prompt:      fmt.Sprintf(template, idea, PlatformLabel(platform)),
		MaxTokens:   maxTokens,
		Temperature: defaultTemperature,
	}
}
