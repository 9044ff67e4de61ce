package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEMINI_API_KEY", "SSM_API_KEY_PARAM", "REFIMG_STORE", "REFIMG_LOCAL_DIR",
		"TEMPLATE_TABLE_NAME", "TEMPLATE_BUCKET_NAME", "DATABASE_URL",
		"REFIMG_RPS", "REFIMG_CACHE_TTL", "PORT",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if c.Store != StoreLocal || c.LocalDir != "templates" || c.Port != "8080" {
		t.Errorf("defaults = %+v", c)
	}
	if c.SSMKeyParam != DefaultSSMKeyParam || c.RPS != 2 || c.CacheTTL != 15*time.Minute {
		t.Errorf("defaults = %+v", c)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("REFIMG_STORE", "Dynamo")
	t.Setenv("TEMPLATE_TABLE_NAME", "templates")
	t.Setenv("TEMPLATE_BUCKET_NAME", "template-images")
	t.Setenv("REFIMG_RPS", "0.5")
	t.Setenv("REFIMG_CACHE_TTL", "90s")

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if c.Store != StoreDynamo || c.RPS != 0.5 || c.CacheTTL != 90*time.Second {
		t.Errorf("config = %+v", c)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown store", map[string]string{"REFIMG_STORE": "redis"}},
		{"dynamo without table", map[string]string{"REFIMG_STORE": "dynamo", "TEMPLATE_BUCKET_NAME": "b"}},
		{"postgres without url", map[string]string{"REFIMG_STORE": "postgres"}},
		{"bad rps", map[string]string{"REFIMG_RPS": "fast"}},
		{"bad ttl", map[string]string{"REFIMG_CACHE_TTL": "15"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := FromEnv(); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("REFIMG_STORE")

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("REFIMG_STORE=postgres\nDATABASE_URL=postgres://localhost/refimg\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	t.Cleanup(func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("REFIMG_STORE")
	})

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Store != StorePostgres || c.DatabaseURL != "postgres://localhost/refimg" {
		t.Errorf("config = %+v", c)
	}
}
