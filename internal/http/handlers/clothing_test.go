package handlers

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mycloset/internal/domain"
	"mycloset/internal/providers/genai"
)

type fakeFetcher struct {
	data []byte
	mime string
	err  error
}

func (f fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	return f.data, f.mime, f.err
}

type fakeDetector struct {
	calls     int
	detection domain.ClothingDetection
}

func (d *fakeDetector) DetectClothing(ctx context.Context, img genai.ImagePart) (domain.ClothingDetection, error) {
	d.calls++
	return d.detection, nil
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 200, 300))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestAnalyzeClothingAcceptsRealImage(t *testing.T) {
	det := &fakeDetector{detection: domain.ClothingDetection{
		IsClothing: true,
		Category:   "shirts_tops",
		Quality:    "good",
		Suitable:   true,
		Confidence: 0.92,
	}}
	app := newTestApp(&stubDB{})
	app.Fetcher = fakeFetcher{data: testPNG(t), mime: "image/png"}
	app.Detector = det

	req := authedRequest(t, http.MethodPost, "/v1/clothing-items/analyze", map[string]any{
		"image_url": "https://img/shirt.png",
	}, "free")
	rec := httptest.NewRecorder()
	app.AnalyzeClothing(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if det.calls != 1 {
		t.Errorf("detector calls = %d, want 1", det.calls)
	}
}

func TestAnalyzeClothingRejectsNonImageBytes(t *testing.T) {
	// The fetcher hands back whatever the remote host served. Garbage must
	// be rejected before the model is consulted.
	det := &fakeDetector{}
	app := newTestApp(&stubDB{})
	app.Fetcher = fakeFetcher{data: []byte("<html>not an image</html>"), mime: "text/html"}
	app.Detector = det

	req := authedRequest(t, http.MethodPost, "/v1/clothing-items/analyze", map[string]any{
		"image_url": "https://img/fake.png",
	}, "free")
	rec := httptest.NewRecorder()
	app.AnalyzeClothing(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "invalid_image") {
		t.Errorf("expected invalid_image code, got %s", rec.Body.String())
	}
	if det.calls != 0 {
		t.Errorf("detector ran on undecodable bytes: %d calls", det.calls)
	}
}
