package step

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/felixgeelhaar/vpsctl/internal/ports"
)

func TestStepError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *StepError
		want string
	}{
		{
			name: "message only",
			err:  NewStepError(ErrCodeApplyFailed, "boom"),
			want: "boom",
		},
		{
			name: "with step",
			err:  NewStepError(ErrCodeApplyFailed, "boom").WithStepID("apt:update"),
			want: `step "apt:update": boom`,
		},
		{
			name: "with cause",
			err:  NewStepError(ErrCodeApplyFailed, "boom").WithUnderlying(errors.New("disk full")),
			want: "boom: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStepError_Format(t *testing.T) {
	err := MissingPrecondition("no SSH key for root", "Add a key to /root/.ssh/authorized_keys").
		WithStepID("ssh:authorized-key").
		WithUnderlying(errors.New("file is empty"))

	got := err.Format()
	for _, want := range []string{
		"[MISSING_PRECONDITION] no SSH key for root",
		"Step: ssh:authorized-key",
		"Suggestion: Add a key",
		"Cause: file is empty",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Format() missing %q in:\n%s", want, got)
		}
	}
}

func TestStepError_WithDoesNotModifyOriginal(t *testing.T) {
	base := NewStepError(ErrCodeApplyFailed, "boom")
	_ = base.WithStepID("x").WithSuggestion("y").WithUnderlying(errors.New("z"))

	if base.StepID != "" || base.Suggestion != "" || base.Underlying != nil {
		t.Errorf("original was modified: %+v", base)
	}
}

func TestCommandFailed(t *testing.T) {
	err := CommandFailed("apt-get install -y git", ports.CommandResult{
		ExitCode: 100,
		Stderr:   "E: Unable to locate package git\n",
	})

	if err.Code != ErrCodeCommandFailed {
		t.Errorf("Code = %q", err.Code)
	}
	if !strings.Contains(err.Message, "status 100") {
		t.Errorf("Message = %q, want exit status", err.Message)
	}
	if err.Underlying == nil || err.Underlying.Error() != "E: Unable to locate package git" {
		t.Errorf("Underlying = %v, want stderr verbatim", err.Underlying)
	}

	silent := CommandFailed("false", ports.CommandResult{ExitCode: 1})
	if silent.Underlying != nil {
		t.Errorf("Underlying = %v, want nil for empty output", silent.Underlying)
	}
}

func TestClassify(t *testing.T) {
	timeout := ReadinessTimeout("node", errors.New("not ready"))
	missing := MissingPrecondition("no tty", "")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: errors.New("x"), want: ""},
		{name: "apply wrapping timeout", err: NewApplyFailedError("wait", timeout), want: ErrCodeReadinessTimeout},
		{name: "apply wrapping fmt-wrapped precondition", err: NewApplyFailedError("s", fmt.Errorf("ctx: %w", missing)), want: ErrCodeMissingPrecondition},
		{name: "apply wrapping plain", err: NewApplyFailedError("s", errors.New("x")), want: ErrCodeApplyFailed},
		{name: "check failed", err: NewCheckFailedError("s", errors.New("x")), want: ErrCodeCheckFailed},
		{name: "fmt-wrapped command failure", err: fmt.Errorf("run: %w", CommandFailed("ufw", ports.CommandResult{ExitCode: 1})), want: ErrCodeCommandFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWarning(t *testing.T) {
	if Warn(nil) != nil {
		t.Error("Warn(nil) should be nil")
	}

	cause := errors.New("app.example.com resolves to 10.0.0.1, expected 203.0.113.7")
	w := Warn(cause)
	if !IsWarning(w) {
		t.Error("IsWarning should detect a warning")
	}
	if !IsWarning(fmt.Errorf("dns: %w", w)) {
		t.Error("IsWarning should detect a wrapped warning")
	}
	if !errors.Is(w, cause) {
		t.Error("warning should unwrap to its cause")
	}
	if IsWarning(cause) {
		t.Error("a plain error is not a warning")
	}
	if got := Warnf("offset %s", "2s").Error(); got != "offset 2s" {
		t.Errorf("Warnf() = %q", got)
	}
}
