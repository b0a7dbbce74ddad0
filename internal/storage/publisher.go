package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"mycloset/internal/domain"
)

// Publisher uploads generated try-on images and produces an access URL.
// Failures wrap domain.ErrUpload; the processor records them on the session
// instead of dropping the result silently.
type Publisher struct {
	store  ObjectStore
	logger zerolog.Logger
	now    func() time.Time
}

func NewPublisher(store ObjectStore, logger zerolog.Logger) *Publisher {
	return &Publisher{store: store, logger: logger, now: time.Now}
}

// Publish writes the image under the user's namespace and returns a signed
// URL, falling back to the store's public URL when signing fails.
func (p *Publisher) Publish(ctx context.Context, userID, sessionID string, data []byte, mime string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("publish session %s: empty image: %w", sessionID, domain.ErrUpload)
	}

	key := fmt.Sprintf("tryon/%s/%d-%s%s", userID, p.now().UnixNano(), sessionID, ExtensionForMIME(mime))
	storedKey, err := p.store.Put(ctx, key, data, mime)
	if err != nil {
		return "", fmt.Errorf("publish session %s: %v: %w", sessionID, err, domain.ErrUpload)
	}

	url, err := p.store.SignedURL(ctx, storedKey)
	if err == nil {
		return url, nil
	}

	if public, ok := p.store.(PublicURLer); ok {
		p.logger.Warn().Err(err).Str("key", storedKey).Msg("storage: signing failed, using public url")
		return public.PublicURL(storedKey), nil
	}
	return "", fmt.Errorf("publish session %s: sign url: %v: %w", sessionID, err, domain.ErrUpload)
}

// ExtensionForMIME maps the image MIME types the model emits onto file
// extensions, defaulting to .png for anything unrecognized.
func ExtensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/png", "":
		return ".png"
	default:
		return ".png"
	}
}
