package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodedErrorMessage(t *testing.T) {
	err := NewError(CodeDownloadFailed, "fetch song.mp3", errors.New("status 404"))
	if got := err.Error(); got != "DOWNLOAD_FAILED: fetch song.mp3: status 404" {
		t.Fatalf("Error() = %q", got)
	}
	if got := NewError(CodeNotFound, "media not found: x", nil).Error(); got != "NOT_FOUND: media not found: x" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("download: %w", NewError(CodeValidation, "url is required", nil))
	if got := CodeOf(wrapped); got != CodeValidation {
		t.Fatalf("CodeOf(wrapped) = %q", got)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Fatalf("CodeOf(plain) = %q", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Fatalf("CodeOf(nil) = %q", got)
	}
}
