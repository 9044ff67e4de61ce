// Package auth resolves and validates the Gemini API key for interactive use.
// Lambdas read the key from SSM instead (see internal/lambdaboot).
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	credentialDir  = ".refimg"
	credentialFile = "credentials.gpg"
	passphraseFile = ".gpg-passphrase"
)

// ErrNoAPIKey is returned when neither the environment nor the credentials
// file yields a key.
var ErrNoAPIKey = errors.New("API key not found: set GEMINI_API_KEY or store it GPG-encrypted at ~/.refimg/credentials.gpg")

// GetAPIKey returns GEMINI_API_KEY when set, else decrypts
// ~/.refimg/credentials.gpg.
func GetAPIKey() (string, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, nil
	}

	key, err := decryptCredentials()
	if err != nil {
		log.Debug().Err(err).Msg("No usable GPG credentials")
		return "", fmt.Errorf("%w (%v)", ErrNoAPIKey, err)
	}
	if key == "" {
		return "", ErrNoAPIKey
	}
	log.Debug().Msg("Using API key from GPG encrypted file")
	return key, nil
}

func decryptCredentials() (string, error) {
	credPath, err := credentialPath()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(credPath); err != nil {
		return "", fmt.Errorf("credentials file %s: %w", credPath, err)
	}

	args := []string{"--decrypt", "--quiet"}
	if p := passphrasePath(); p != "" {
		args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", p)
	}
	args = append(args, credPath)

	log.Debug().Str("file", credPath).Msg("Decrypting GPG credentials")
	output, err := exec.Command("gpg", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("GPG decryption failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

func credentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, credentialDir, credentialFile), nil
}

// passphrasePath returns the first readable owner-only passphrase file among
// REFIMG_GPG_PASSPHRASE_FILE, the executable's directory and the working
// directory. Empty means gpg prompts interactively.
func passphrasePath() string {
	var candidates []string
	if env := os.Getenv("REFIMG_GPG_PASSPHRASE_FILE"); env != "" {
		candidates = append(candidates, env)
	}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), passphraseFile))
	}
	if cwd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(cwd, passphraseFile))
	}

	for _, p := range candidates {
		fi, err := os.Stat(p)
		if err != nil || fi.IsDir() {
			continue
		}
		if perm := fi.Mode().Perm(); perm&0o077 != 0 {
			log.Warn().
				Str("passphrase_file", p).
				Str("permissions", fmt.Sprintf("%04o", perm)).
				Msg("Passphrase file is readable by others (want 0600); skipping")
			continue
		}
		return p
	}
	return ""
}
