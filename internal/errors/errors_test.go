package errors

import (
	"fmt"
	"testing"
)

func TestIsTypeFollowsWrapping(t *testing.T) {
	base := MissingInput("displacement_cc", "displacement is required")
	wrapped := fmt.Errorf("estimate: %w", base)

	if !IsType(wrapped, TypeMissingInput) {
		t.Fatalf("expected wrapped error to be classified as %s", TypeMissingInput)
	}
	if IsType(wrapped, TypeConfigInvalid) {
		t.Errorf("wrapped error must not match %s", TypeConfigInvalid)
	}

	e, ok := As(wrapped)
	if !ok {
		t.Fatal("As did not find *Error")
	}
	if e.Context["field"] != "displacement_cc" {
		t.Errorf("expected field context, got %v", e.Context)
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "plain",
			err:  UnresolvedScenario("over_5"),
			want: `[UNRESOLVED_SCENARIO] no configuration for scenario "over_5"`,
		},
		{
			name: "with cause",
			err:  Wrap(TypeInternal, "decode", fmt.Errorf("boom")),
			want: "[INTERNAL_ERROR] decode: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsTypeOnForeignError(t *testing.T) {
	if IsType(fmt.Errorf("plain"), TypeInput) {
		t.Error("plain error must not be classified")
	}
	if IsType(nil, TypeInput) {
		t.Error("nil error must not be classified")
	}
}
