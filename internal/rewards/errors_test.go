package rewards

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeAndRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  string
		wantRetry bool
	}{
		{name: "out of stock", err: ErrOutOfStock, wantCode: "out_of_stock", wantRetry: true},
		{name: "already used wrapped", err: fmt.Errorf("consume: %w", ErrAlreadyUsed), wantCode: "already_used", wantRetry: false},
		{name: "insufficient inputs typed", err: &InsufficientInputsError{Required: 10, Available: 9}, wantCode: "insufficient_inputs", wantRetry: false},
		{name: "timeout joined", err: errors.Join(ErrExternalTimeout, errors.New("deadline")), wantCode: "external_timeout", wantRetry: true},
		{name: "state error keeps reason", err: StateError(ErrAlreadyUsed), wantCode: "already_used", wantRetry: false},
		{name: "bare invalid state", err: ErrInvalidState, wantCode: "invalid_state", wantRetry: false},
		{name: "unknown", err: errors.New("boom"), wantCode: "internal_error", wantRetry: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.wantCode {
				t.Fatalf("Code() = %q, want %q", got, tt.wantCode)
			}
			if got := Retryable(tt.err); got != tt.wantRetry {
				t.Fatalf("Retryable() = %v, want %v", got, tt.wantRetry)
			}
		})
	}
}

func TestInsufficientInputsErrorMessage(t *testing.T) {
	err := &InsufficientInputsError{Required: 3, Available: 1, MissingCategories: []string{"art", "music"}}
	want := "insufficient_inputs: need 3, have 1 (missing art,music)"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrInsufficientInputs) {
		t.Fatal("expected errors.Is to match ErrInsufficientInputs")
	}
}

func TestOperationStatusTerminal(t *testing.T) {
	if OperationPending.Terminal() {
		t.Fatal("pending must not be terminal")
	}
	if !OperationConfirmed.Terminal() || !OperationFailed.Terminal() {
		t.Fatal("confirmed and failed must be terminal")
	}
}

func TestForgeOutputTier(t *testing.T) {
	cases := map[ForgeType]Tier{
		ForgeCategory: TierCategoryUltimate,
		ForgeMaster:   TierMasterUltimate,
		ForgeSeason:   TierSeasonalUltimate,
	}
	for ft, want := range cases {
		if got := ft.OutputTier(); got != want {
			t.Fatalf("%s.OutputTier() = %s, want %s", ft, got, want)
		}
	}
}
