package auth

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/genai"

	"github.com/berthelol/reference-images/internal/metrics"
)

func TestGetAPIKey_FromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-api-key-12345")

	key, err := GetAPIKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "test-api-key-12345" {
		t.Errorf("key = %q", key)
	}
}

func TestGetAPIKey_NoSource(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("HOME", t.TempDir())

	_, err := GetAPIKey()
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestCredentialPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := credentialPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := filepath.Join(home, ".refimg", "credentials.gpg"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
}

func TestPassphrasePath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	open := filepath.Join(dir, "open-passphrase")
	if err := os.WriteFile(open, []byte("pw"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REFIMG_GPG_PASSPHRASE_FILE", open)
	if got := passphrasePath(); got != "" {
		t.Errorf("world-readable file accepted: %q", got)
	}

	private := filepath.Join(dir, "private-passphrase")
	if err := os.WriteFile(private, []byte("pw"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REFIMG_GPG_PASSPHRASE_FILE", private)
	if got := passphrasePath(); got != private {
		t.Errorf("passphrasePath = %q, want %q", got, private)
	}
}

type fakeGenerator struct {
	resp *genai.GenerateContentResponse
	err  error
}

func (f fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return f.resp, f.err
}

func TestValidateAPIKey(t *testing.T) {
	metrics.SetOutput(io.Discard)
	ok := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}

	tests := []struct {
		name     string
		gen      fakeGenerator
		wantType ValidationErrorType
		wantErr  bool
	}{
		{"valid", fakeGenerator{resp: ok}, 0, false},
		{"empty response", fakeGenerator{resp: &genai.GenerateContentResponse{}}, ErrTypeUnknown, true},
		{"forbidden", fakeGenerator{err: genai.APIError{Code: 403, Message: "denied"}}, ErrTypeInvalidKey, true},
		{"rate limited", fakeGenerator{err: &genai.APIError{Code: 429}}, ErrTypeQuotaExceeded, true},
		{"network", fakeGenerator{err: errors.New("dial tcp: no such host")}, ErrTypeNetworkError, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAPIKey(context.Background(), tt.gen, "gemini-2.5-flash")
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Type != tt.wantType {
				t.Errorf("type = %v, want %v", verr.Type, tt.wantType)
			}
		})
	}
}
