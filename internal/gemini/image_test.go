package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/berthelol/reference-images/internal/creative"
	"github.com/berthelol/reference-images/internal/filehandler"
)

func imageServer(t *testing.T, status int, body string, seen *geminiRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/test-image:generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Errorf("api key header missing")
		}
		if seen != nil {
			data, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(data, seen); err != nil {
				t.Errorf("request body: %v", err)
			}
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(url string) *ImageClient {
	return NewImageClient("k", "test-image").WithBaseURL(url)
}

func TestGenerateImage_Success(t *testing.T) {
	png := base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\nrest"))
	body := `{"candidates":[{"content":{"parts":[{"text":"Here you go. "},{"inlineData":{"mimeType":"image/png","data":"` + png + `"}}]},"finishReason":"STOP"}],
		"usageMetadata":{"promptTokenCount":1200,"candidatesTokenCount":1290}}`
	var seen geminiRequest
	srv := imageServer(t, http.StatusOK, body, &seen)

	resp, err := testClient(srv.URL).GenerateImage(context.Background(), creative.ImageRequest{
		Name:        "composite",
		Instruction: "put it here",
		Images: []filehandler.Image{
			{Data: []byte("a"), MIMEType: filehandler.MIMEPNG},
			{Data: []byte("b"), MIMEType: filehandler.MIMEJPEG},
		},
	})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if resp.Filtered || resp.Image.MIMEType != filehandler.MIMEPNG || !strings.HasSuffix(string(resp.Image.Data), "rest") {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Text != "Here you go. " || resp.Usage.OutputTokens != 1290 {
		t.Errorf("text = %q usage = %+v", resp.Text, resp.Usage)
	}

	parts := seen.Contents[0].Parts
	if len(parts) != 3 || parts[0].Text != "put it here" || parts[1].InlineData.MIMEType != filehandler.MIMEPNG {
		t.Fatalf("parts = %+v", parts)
	}
	if got, _ := base64.StdEncoding.DecodeString(parts[2].InlineData.Data); string(got) != "b" {
		t.Errorf("second image = %q", got)
	}
	if mods := seen.GenerationConfig.ResponseModalities; len(mods) != 2 || mods[1] != "IMAGE" {
		t.Errorf("modalities = %v", mods)
	}
}

func TestGenerateImage_Filtered(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"finish reason", `{"candidates":[{"content":{"parts":[{"text":"I can't"}]},"finishReason":"IMAGE_SAFETY"}]}`},
		{"prompt blocked", `{"promptFeedback":{"blockReason":"PROHIBITED_CONTENT"}}`},
		{"blocked without candidates", `{"promptFeedback":{"blockReason":"OTHER"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := imageServer(t, http.StatusOK, tt.body, nil)
			resp, err := testClient(srv.URL).GenerateImage(context.Background(), creative.ImageRequest{Instruction: "x"})
			if err != nil {
				t.Fatalf("GenerateImage: %v", err)
			}
			if !resp.Filtered || !resp.Image.IsZero() || resp.FinishReason == "" {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}

func TestGenerateImage_NoImage(t *testing.T) {
	srv := imageServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"only words"}]},"finishReason":"STOP"}]}`, nil)
	resp, err := testClient(srv.URL).GenerateImage(context.Background(), creative.ImageRequest{Instruction: "x"})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if resp.Filtered || !resp.Image.IsZero() || resp.Text != "only words" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGenerateImage_RecitationIsEmptyNotFiltered(t *testing.T) {
	srv := imageServer(t, http.StatusOK, `{"candidates":[{"content":{"parts":[]},"finishReason":"RECITATION"}]}`, nil)
	resp, err := testClient(srv.URL).GenerateImage(context.Background(), creative.ImageRequest{Instruction: "x"})
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if resp.Filtered || !resp.Image.IsZero() || resp.FinishReason != "RECITATION" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGenerateImage_StatusErrors(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusForbidden, false},
	}
	for _, tt := range tests {
		srv := imageServer(t, tt.status, `{"error":{"code":1,"message":"nope","status":"X"}}`, nil)
		_, err := testClient(srv.URL).GenerateImage(context.Background(), creative.ImageRequest{Instruction: "x"})
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("status %d: err = %v", tt.status, err)
		}
		if apiErr.StatusCode != tt.status || apiErr.Message != "nope" {
			t.Errorf("status %d: apiErr = %+v", tt.status, apiErr)
		}
		if creative.IsTransient(err) != tt.transient {
			t.Errorf("status %d: transient = %v, want %v", tt.status, !tt.transient, tt.transient)
		}
	}
}

func TestIsFilterReason(t *testing.T) {
	for _, r := range []string{"SAFETY", "image_safety", "PROHIBITED_CONTENT", "SPII", "BLOCKLIST"} {
		if !IsFilterReason(r) {
			t.Errorf("%s should be a filter reason", r)
		}
	}
	for _, r := range []string{"", "STOP", "MAX_TOKENS", "RECITATION"} {
		if IsFilterReason(r) {
			t.Errorf("%s should not be a filter reason", r)
		}
	}
}
