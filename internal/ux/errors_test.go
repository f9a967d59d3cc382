package ux

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/felixgeelhaar/losctl/internal/errors"
)

func TestNewErrorWithSuggestion(t *testing.T) {
	if NewErrorWithSuggestion(nil, "x") != nil {
		t.Error("nil error should stay nil")
	}

	base := stderrors.New("something failed")
	err := NewErrorWithSuggestion(base, "try this fix")
	if !strings.Contains(err.Error(), "Suggestion: try this fix") {
		t.Errorf("Error() = %q, missing suggestion", err.Error())
	}
	if !stderrors.Is(err, base) {
		t.Error("wrapped error should unwrap to the base error")
	}

	if NewErrorWithSuggestion(base, "").Error() != "something failed" {
		t.Error("empty suggestion should not change the message")
	}
}

func TestEnhanceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		suggestion string
	}{
		{"permission denied", stderrors.New("open /home/u/.losctl/credentials.json: permission denied"), "~/.losctl"},
		{"missing config", stderrors.New("open config.yaml: no such file or directory"), "losctl config path"},
		{"connection refused", stderrors.New("dial tcp 127.0.0.1:8080: connection refused"), "API URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enhanced := EnhanceError(tt.err)
			var hinted *ErrorWithSuggestion
			if !stderrors.As(enhanced, &hinted) {
				t.Fatalf("expected suggestion, got %v", enhanced)
			}
			if !strings.Contains(hinted.Suggestion, tt.suggestion) {
				t.Errorf("Suggestion = %q, want it to mention %q", hinted.Suggestion, tt.suggestion)
			}
		})
	}

	coded := errors.NewNetworkError(stderrors.New("connection refused"))
	if EnhanceError(coded) != error(coded) {
		t.Error("coded errors must pass through unchanged")
	}
	if EnhanceError(nil) != nil {
		t.Error("nil should stay nil")
	}
	plain := stderrors.New("boom")
	if EnhanceError(plain) != plain {
		t.Error("unknown errors should pass through unchanged")
	}
}

func TestFormatError(t *testing.T) {
	err := FormatError(stderrors.New("boom"), "loading configuration")
	if err.Error() != "loading configuration: boom" {
		t.Errorf("FormatError() = %q", err.Error())
	}
	if FormatError(nil, "x") != nil {
		t.Error("nil should stay nil")
	}
}

func TestRenderError(t *testing.T) {
	styles := NewStyles(true)

	t.Run("coded error", func(t *testing.T) {
		var buf bytes.Buffer
		RenderError(&buf, fmt.Errorf("listing: %w", errors.NewNoSessionError()), styles)

		out := buf.String()
		if !strings.HasPrefix(out, "Error: not logged in [AUTH-004]") {
			t.Errorf("unexpected header: %q", out)
		}
		if !strings.Contains(out, "• Run 'losctl auth login' first") {
			t.Errorf("missing suggestion: %q", out)
		}
	})

	t.Run("validation hides cause", func(t *testing.T) {
		var buf bytes.Buffer
		RenderError(&buf, errors.Wrap(errors.KindValidation, errors.ErrCodeValidation, "username is required", stderrors.New("Key: 'Credentials.username'")), styles)

		if strings.Contains(buf.String(), "Key:") {
			t.Errorf("validator internals leaked: %q", buf.String())
		}
	})

	t.Run("aborted", func(t *testing.T) {
		var buf bytes.Buffer
		RenderError(&buf, errors.NewAbortedError(nil), styles)
		if strings.TrimSpace(buf.String()) != "Operation cancelled" {
			t.Errorf("unexpected output: %q", buf.String())
		}
	})

	t.Run("plain error with hint", func(t *testing.T) {
		var buf bytes.Buffer
		RenderError(&buf, NewErrorWithSuggestion(stderrors.New("boom"), "retry"), styles)
		if !strings.Contains(buf.String(), "• retry") {
			t.Errorf("missing hint: %q", buf.String())
		}
	})
}
