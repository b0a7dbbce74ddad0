package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mycloset/internal/domain"
)

type fakeStore struct {
	putKey  string
	putData []byte
	putErr  error
	signErr error
}

func (f *fakeStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.putKey = key
	f.putData = append([]byte(nil), data...)
	return key, nil
}

func (f *fakeStore) SignedURL(ctx context.Context, key string) (string, error) {
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://signed/" + key, nil
}

type publicFakeStore struct {
	fakeStore
}

func (f *publicFakeStore) PublicURL(key string) string {
	return "https://public/" + key
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
}

func TestPublishReturnsSignedURL(t *testing.T) {
	store := &fakeStore{}
	p := NewPublisher(store, zerolog.Nop())
	p.now = fixedClock

	url, err := p.Publish(context.Background(), "user-1", "sess-1", []byte("img"), "image/png")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !strings.HasPrefix(url, "https://signed/tryon/user-1/") {
		t.Errorf("url = %q, want signed url under the user namespace", url)
	}
	if !strings.HasSuffix(store.putKey, "-sess-1.png") {
		t.Errorf("key = %q, want session id and .png suffix", store.putKey)
	}
}

func TestPublishFallsBackToPublicURL(t *testing.T) {
	store := &publicFakeStore{}
	store.signErr = errors.New("presign unavailable")
	p := NewPublisher(store, zerolog.Nop())

	url, err := p.Publish(context.Background(), "user-1", "sess-1", []byte("img"), "image/jpeg")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if !strings.HasPrefix(url, "https://public/") {
		t.Errorf("url = %q, want public fallback", url)
	}
}

func TestPublishFailsWithoutFallback(t *testing.T) {
	store := &fakeStore{signErr: errors.New("presign unavailable")}
	p := NewPublisher(store, zerolog.Nop())

	_, err := p.Publish(context.Background(), "user-1", "sess-1", []byte("img"), "image/png")
	if !errors.Is(err, domain.ErrUpload) {
		t.Fatalf("err = %v, want ErrUpload", err)
	}
}

func TestPublishRejectsEmptyImage(t *testing.T) {
	p := NewPublisher(&fakeStore{}, zerolog.Nop())
	if _, err := p.Publish(context.Background(), "u", "s", nil, "image/png"); !errors.Is(err, domain.ErrUpload) {
		t.Fatalf("err = %v, want ErrUpload", err)
	}
}

func TestPublishWrapsPutErrors(t *testing.T) {
	store := &fakeStore{putErr: errors.New("bucket gone")}
	p := NewPublisher(store, zerolog.Nop())
	if _, err := p.Publish(context.Background(), "u", "s", []byte("img"), "image/png"); !errors.Is(err, domain.ErrUpload) {
		t.Fatalf("err = %v, want ErrUpload", err)
	}
}

func TestExtensionForMIME(t *testing.T) {
	cases := map[string]string{
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"image/jpg":  ".jpg",
		"image/webp": ".webp",
		"":           ".png",
		"image/gif":  ".png",
	}
	for mime, want := range cases {
		if got := ExtensionForMIME(mime); got != want {
			t.Errorf("ExtensionForMIME(%q) = %q, want %q", mime, got, want)
		}
	}
}

func TestSanitizeKey(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"tryon/u/file.png", "tryon/u/file.png", false},
		{"/leading/slash.png", "leading/slash.png", false},
		{"./dotted/key.png", "dotted/key.png", false},
		{"a/../../escape.png", "", true},
		{"..", "", true},
		{"   ", "", true},
	}
	for _, tc := range cases {
		got, err := sanitizeKey(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("sanitizeKey(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("sanitizeKey(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
