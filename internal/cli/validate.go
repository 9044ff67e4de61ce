package cli

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/berthelol/reference-images/internal/auth"
)

// ValidateAndResolveDirectory checks that dirPath is a directory and returns
// its absolute path. Exits fatally on failure.
func ValidateAndResolveDirectory(dirPath string) string {
	info, err := os.Stat(dirPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Fatal().Str("path", dirPath).Msg("Directory not found")
	case err != nil:
		log.Fatal().Err(err).Str("path", dirPath).Msg("Failed to access directory")
	case !info.IsDir():
		log.Fatal().Str("path", dirPath).Msg("Path is not a directory")
	}
	if abs, err := filepath.Abs(dirPath); err == nil {
		return abs
	}
	return dirPath
}

// validationHints are the user-facing messages per key failure.
var validationHints = map[auth.ValidationErrorType]string{
	auth.ErrTypeNoKey:         "No API key configured. Set GEMINI_API_KEY or store it in ~/.refimg/credentials.gpg",
	auth.ErrTypeInvalidKey:    "Invalid API key. Please check your API key and try again",
	auth.ErrTypeNetworkError:  "Network error. Please check your internet connection",
	auth.ErrTypeQuotaExceeded: "API quota exceeded. Please try again later or check your usage limits",
}

// HandleValidationError logs a key problem in user terms and exits.
func HandleValidationError(err error) {
	msg := "API key validation failed"
	var validationErr *auth.ValidationError
	if errors.As(err, &validationErr) {
		if hint, ok := validationHints[validationErr.Type]; ok {
			msg = hint
		}
	}
	log.Fatal().Err(err).Msg(msg)
}

// ImagePaths returns the template image files directly inside dir, sorted by
// name. Subdirectories and other files are skipped.
func ImagePaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".webp":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths, nil
}
