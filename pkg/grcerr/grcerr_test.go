package grcerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{NewNotFound("baseline", "BL-CORE"), CodeNotFound},
		{NewCompositionConflict("OVL-A", "CTL-1", "add", "mandatory flag disagreement"), CodeCompositionConflict},
		{NewCycleDetected("ENT-1"), CodeCycleDetected},
		{NewUnsupportedPredicate("R-9", "criticality_tier", "contains"), CodeUnsupportedPredicate},
		{NewConcurrentModification("ENT-1", 3), CodeConcurrentModification},
		{NewValidation("profile", "jurisdictions empty"), CodeValidation},
		{errors.New("plain"), ""},
	}
	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Fatalf("Code(%v)=%q want %q", tt.err, got, tt.want)
		}
	}
}

func TestWrappedErrorsKeepKind(t *testing.T) {
	err := fmt.Errorf("generate suite: %w", NewCompositionConflict("OVL-A", "CTL-1", "remove", "mandatory control"))
	if !IsCompositionConflict(err) {
		t.Fatalf("wrapped composition conflict not detected")
	}
	if IsNotFound(err) {
		t.Fatalf("wrapped error misclassified as not found")
	}
	if Code(err) != CodeCompositionConflict {
		t.Fatalf("code=%q", Code(err))
	}
}
