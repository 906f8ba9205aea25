package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"os not exist", os.ErrNotExist, CodeFileNotFound},
		{"wrapped not exist", fmt.Errorf("open x: %w", os.ErrNotExist), CodeFileNotFound},
		{"os permission", os.ErrPermission, CodePermissionDenied},
		{"message permission", errors.New("access denied by policy"), CodePermissionDenied},
		{"message not found", errors.New("statement not found"), CodeFileNotFound},
		{"message validation", errors.New("invalid amount field"), CodeValidationError},
		{"anything else", errors.New("boom"), CodeProcessingError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			if got.Code != tt.want {
				t.Errorf("Classify() code = %s, want %s", got.Code, tt.want)
			}
			if !errors.Is(got, tt.err) {
				t.Error("Classify() should wrap the original error")
			}
		})
	}
}

func TestClassify_PassThrough(t *testing.T) {
	orig := New(CodeFileTooLarge, "too big").WithStage("validate")
	got := Classify(fmt.Errorf("outer: %w", orig))
	if got != orig {
		t.Errorf("Classify() should return the existing *Error unchanged, got %v", got)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeFileNotFound, http.StatusNotFound},
		{CodeInvalidFileType, http.StatusBadRequest},
		{CodeFileTooLarge, http.StatusRequestEntityTooLarge},
		{CodePermissionDenied, http.StatusForbidden},
		{CodeOracleRateLimited, http.StatusTooManyRequests},
		{CodeProcessingError, http.StatusInternalServerError},
		{CodePDFParseError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			e := New(tt.code, "x")
			if e.Status() != tt.want {
				t.Errorf("Status() = %d, want %d", e.Status(), tt.want)
			}
		})
	}
}

func TestErrorLog_Eviction(t *testing.T) {
	log := NewErrorLog(3)
	for i := 0; i < 5; i++ {
		log.Append(New(CodeProcessingError, "err-%d", i))
	}

	if log.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", log.Len())
	}

	recent := log.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("Recent(0) returned %d entries, want 3", len(recent))
	}
	// Newest first; entries 0 and 1 were evicted.
	wantMsgs := []string{"err-4", "err-3", "err-2"}
	for i, want := range wantMsgs {
		if recent[i].Message != want {
			t.Errorf("Recent[%d].Message = %q, want %q", i, recent[i].Message, want)
		}
	}
}

func TestErrorLog_RecentLimit(t *testing.T) {
	log := NewErrorLog(10)
	for i := 0; i < 4; i++ {
		log.Append(New(CodeValidationError, "v-%d", i))
	}

	recent := log.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Recent(2) returned %d entries", len(recent))
	}
	if recent[0].Message != "v-3" || recent[1].Message != "v-2" {
		t.Errorf("Recent(2) = [%s %s], want [v-3 v-2]", recent[0].Message, recent[1].Message)
	}
}
