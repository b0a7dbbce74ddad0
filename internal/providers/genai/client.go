package genai

import (
	"context"
	"fmt"
	"strings"
	"time"

	gai "github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"mycloset/internal/domain"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Client is a thin facade over the Gemini SDK scoped to the two calls this
// service makes: try-on image generation and clothing detection.
type Client struct {
	client  *gai.Client
	model   string
	timeout time.Duration
	logger  zerolog.Logger
}

// ImagePart is one inline image in a multimodal request.
type ImagePart struct {
	Data []byte
	MIME string
}

// TryOnRequest carries everything for a single generation attempt.
type TryOnRequest struct {
	BasePhoto      ImagePart
	ClothingImages []ImagePart
	Instruction    string
}

// NewClient constructs a Gemini client. The API key is required; model and
// timeout fall back to service defaults.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("genai: api key is required")
	}

	inner, err := gai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.0-flash-exp"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{client: inner, model: model, timeout: timeout, logger: opts.Logger}, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// Close releases the underlying SDK connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// GenerateTryOn sends one multimodal request and consumes the streamed
// response chunk by chunk, returning as soon as a chunk carries image data.
// The deferred cancel tears the stream down, so the remainder is never
// buffered. An image-free stream maps to ErrEmptyResponse; the hard timeout
// bounds the whole call.
func (c *Client) GenerateTryOn(ctx context.Context, req TryOnRequest) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parts := make([]gai.Part, 0, len(req.ClothingImages)+2)
	parts = append(parts, gai.Text(req.Instruction))
	parts = append(parts, gai.Blob{MIMEType: orJPEG(req.BasePhoto.MIME), Data: req.BasePhoto.Data})
	for _, img := range req.ClothingImages {
		parts = append(parts, gai.Blob{MIMEType: orJPEG(img.MIME), Data: img.Data})
	}

	model := c.client.GenerativeModel(c.model)
	it := model.GenerateContentStream(ctx, parts...)
	for {
		resp, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, "", c.mapError(ctx, err)
		}
		if data, mime, ok := firstImagePart(resp); ok {
			return data, mime, nil
		}
	}

	return nil, "", fmt.Errorf("genai: stream ended without image: %w", domain.ErrEmptyResponse)
}

// firstImagePart scans a streamed chunk for inline image data.
func firstImagePart(resp *gai.GenerateContentResponse) ([]byte, string, bool) {
	if resp == nil {
		return nil, "", false
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if blob, ok := part.(gai.Blob); ok && len(blob.Data) > 0 {
				mime := blob.MIMEType
				if mime == "" {
					mime = "image/png"
				}
				return blob.Data, mime, true
			}
		}
	}
	return nil, "", false
}

// mapError folds SDK errors into the domain taxonomy.
func (c *Client) mapError(ctx context.Context, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("genai: generation exceeded %s: %w", c.timeout, domain.ErrAITimeout)
	}
	if isQuotaError(err) {
		return fmt.Errorf("genai: provider quota: %v: %w", err, domain.ErrAIProcessing)
	}
	return fmt.Errorf("genai: %v: %w", err, domain.ErrAIProcessing)
}

func isQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") || strings.Contains(msg, "resourceexhausted") || strings.Contains(msg, "resource exhausted")
}

func orJPEG(mime string) string {
	if strings.TrimSpace(mime) == "" {
		return "image/jpeg"
	}
	return mime
}
