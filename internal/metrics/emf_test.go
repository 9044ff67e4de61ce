package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// capture redirects flushed documents into a buffer for the test.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	t.Cleanup(func() { SetOutput(prev) })
	initOnce.Do(func() {})
	functionName = ""
	return &buf
}

func TestNew_FunctionNameDimension(t *testing.T) {
	capture(t)
	functionName = "api-lambda"
	defer func() { functionName = "" }()

	r := New(Namespace)
	if r.dimensions["FunctionName"] != "api-lambda" {
		t.Errorf("FunctionName = %q", r.dimensions["FunctionName"])
	}
}

func TestRecorder_Flush(t *testing.T) {
	buf := capture(t)

	New(Namespace).
		Dimension("Step", "fill").
		Dimension("Pipeline", "method-1").
		Duration("StepLatencyMs", 1500*time.Millisecond).
		Count("PipelineSuccesses").
		Property("runId", "run-abc").
		Flush()

	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "\n") {
		t.Fatalf("EMF document spans lines: %q", line)
	}
	var doc struct {
		AWS struct {
			Timestamp         int64
			CloudWatchMetrics []struct {
				Namespace  string
				Dimensions [][]string
				Metrics    []metricDef
			}
		} `json:"_aws"`
		Pipeline          string  `json:"Pipeline"`
		StepLatencyMs     float64 `json:"StepLatencyMs"`
		PipelineSuccesses float64 `json:"PipelineSuccesses"`
		RunID             string  `json:"runId"`
	}
	if err := json.Unmarshal([]byte(line), &doc); err != nil {
		t.Fatalf("decode: %v\n%s", err, line)
	}
	if doc.AWS.Timestamp == 0 || len(doc.AWS.CloudWatchMetrics) != 1 {
		t.Fatalf("directive = %+v", doc.AWS)
	}
	cw := doc.AWS.CloudWatchMetrics[0]
	if cw.Namespace != "ReferenceImages" {
		t.Errorf("namespace = %q", cw.Namespace)
	}
	if got := strings.Join(cw.Dimensions[0], ","); got != "Pipeline,Step" {
		t.Errorf("dimensions = %q, want sorted", got)
	}
	if len(cw.Metrics) != 2 || cw.Metrics[0].Name != "PipelineSuccesses" || cw.Metrics[1].Unit != UnitMilliseconds {
		t.Errorf("metrics = %+v", cw.Metrics)
	}
	if doc.Pipeline != "method-1" || doc.StepLatencyMs != 1500 || doc.PipelineSuccesses != 1 || doc.RunID != "run-abc" {
		t.Errorf("values = %+v", doc)
	}
}

func TestRecorder_FlushEmpty(t *testing.T) {
	buf := capture(t)
	New(Namespace).Dimension("Step", "fill").Property("runId", "x").Flush()
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestRecorder_Count(t *testing.T) {
	capture(t)
	rec := New(Namespace).Count("Errors")
	if rec.values["Errors"] != float64(1) || rec.metrics["Errors"].Unit != UnitCount {
		t.Errorf("count = %v %v", rec.values["Errors"], rec.metrics["Errors"])
	}
}
