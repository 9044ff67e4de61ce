package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"WARN":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"":      zerolog.InfoLevel,
		"trace": zerolog.InfoLevel,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, FormatJSON)
	l.Info().Str("templateId", "tpl-1").Msg("Template ingested")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("not JSON: %q", buf.String())
	}
	if line["templateId"] != "tpl-1" || line["message"] != "Template ingested" {
		t.Errorf("line = %v", line)
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, FormatConsole)
	l.Info().Msg("ready")
	if strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), "ready") {
		t.Errorf("console output = %q", buf.String())
	}
}

func TestStartupLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	defer func() { log.Logger = prev }()

	NewStartupLogger("api-lambda").
		DynamoTable("templates", "refimg-templates").
		S3Bucket("templates", "").
		EventBus("ingest", "refimg").
		Feature("originVerify", true).
		Config("store", "dynamo").
		Log()

	var line struct {
		Lambda    map[string]string            `json:"lambda"`
		Resources map[string]map[string]string `json:"resources"`
		Features  map[string]bool              `json:"features"`
		Config    map[string]string            `json:"config"`
	}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if line.Lambda["name"] != "api-lambda" {
		t.Errorf("lambda = %v", line.Lambda)
	}
	if line.Resources["dynamoTables"]["templates"] != "refimg-templates" || line.Resources["eventBuses"]["ingest"] != "refimg" {
		t.Errorf("resources = %v", line.Resources)
	}
	if _, ok := line.Resources["s3Buckets"]; ok {
		t.Error("empty resource name attached")
	}
	if !line.Features["originVerify"] || line.Config["store"] != "dynamo" {
		t.Errorf("features = %v config = %v", line.Features, line.Config)
	}
}
