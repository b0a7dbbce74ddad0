package storage

import "context"

// ObjectStore abstracts the bucket the publisher writes generated images to.
type ObjectStore interface {
	// Put persists data under key and returns the canonical stored key.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// SignedURL issues a time-limited authenticated link for key.
	SignedURL(ctx context.Context, key string) (string, error)
}

// PublicURLer is implemented by stores that can produce an unauthenticated
// object URL, used as the fallback when signing fails.
type PublicURLer interface {
	PublicURL(key string) string
}
