package tui

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/losctl/internal/errors"
)

func TestShouldPrompt_DisabledInCI(t *testing.T) {
	for _, key := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "LOSCTL_NO_PROMPT"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "true")
			if ShouldPrompt() {
				t.Errorf("ShouldPrompt() = true with %s set", key)
			}
		})
	}
}

func TestPromptLogin_CompleteInputSkipsForm(t *testing.T) {
	in := LoginInput{Username: "officer1", Password: "secret1"}
	got, err := PromptLogin(context.Background(), in)
	if err != nil {
		t.Fatalf("PromptLogin() error = %v", err)
	}
	if got != in {
		t.Errorf("PromptLogin() = %+v, want %+v", got, in)
	}
}

func TestPromptLogin_NoTerminal(t *testing.T) {
	t.Setenv("CI", "true")

	_, err := PromptLogin(context.Background(), LoginInput{Username: "officer1"})
	if !stderrors.Is(err, errors.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConfirm_NoTerminalUsesDefault(t *testing.T) {
	t.Setenv("CI", "true")

	for _, def := range []bool{true, false} {
		got, err := Confirm(context.Background(), "Delete customer 7?", def)
		if err != nil {
			t.Fatalf("Confirm() error = %v", err)
		}
		if got != def {
			t.Errorf("Confirm() = %v, want default %v", got, def)
		}
	}
}

func TestNewLoginForm(t *testing.T) {
	in := &LoginInput{Username: "officer1"}
	if NewLoginForm(in) == nil {
		t.Fatal("NewLoginForm() returned nil")
	}
}

func TestRequired(t *testing.T) {
	check := required("username")
	if check("  ") == nil {
		t.Error("blank value should fail")
	}
	if check("officer1") != nil {
		t.Error("non-blank value should pass")
	}
}

func TestPromptError(t *testing.T) {
	if !errors.IsAborted(promptError(huh.ErrUserAborted)) {
		t.Error("user abort should map to aborted")
	}
	if !errors.IsAborted(promptError(context.Canceled)) {
		t.Error("context cancellation should map to aborted")
	}
	if errors.IsAborted(promptError(stderrors.New("tty gone"))) {
		t.Error("other failures must not be aborted")
	}
}
