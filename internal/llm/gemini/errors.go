package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/Rrens/appstruct/internal/llm"
	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/grpc/codes"
)

// classify maps SDK errors onto llm error kinds. HTTP status wins when the
// SDK used REST; otherwise the gRPC code decides.
func classify(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &llm.ProviderError{Kind: llm.KindInvalidResponse, Provider: name, Detail: "blocked", Err: err}
	}

	ae, ok := apierror.FromError(err)
	if !ok {
		return llm.ClassifyTransport(name, err)
	}

	if code := ae.HTTPCode(); code > 0 {
		perr := llm.ClassifyStatus(name, code, ae.Error())
		perr.Err = err
		return perr
	}

	kind := llm.KindUnknown
	detail := ""
	msg := strings.ToLower(ae.Error())
	switch ae.GRPCStatus().Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		kind = llm.KindAuthFailed
	case codes.ResourceExhausted:
		kind = llm.KindRateLimited
		if strings.Contains(msg, "quota") {
			kind = llm.KindQuotaExceeded
		}
	case codes.Unavailable:
		kind = llm.KindNetworkUnavailable
	case codes.DeadlineExceeded:
		kind = llm.KindNetworkUnavailable
		detail = "timeout"
	case codes.InvalidArgument:
		if strings.Contains(msg, "api key") {
			kind = llm.KindAuthFailed
		}
	}
	return &llm.ProviderError{Kind: kind, Provider: name, Detail: detail, Err: err}
}
