package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	gai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"

	"mycloset/internal/domain"
)

const detectionPrompt = `Analyze this image and determine if it contains clothing items suitable for a virtual closet.

Instructions:
1. Identify if the image contains clothing (shirts, pants, dresses, shoes, accessories)
2. Determine the clothing category (shirts_tops, pants_bottoms, shoes, other)
3. Assess image quality (lighting, clarity, full item visible)
4. Check if the clothing is suitable for virtual try-on

Return a JSON object with:
- is_clothing: boolean
- category: string
- quality: "good" | "fair" | "poor"
- suitable: boolean
- confidence: number (0-1)`

// DetectClothing classifies an uploaded image. The streamed text is collected
// in full; unlike generation there is no early-return point before the JSON
// is complete.
func (c *Client) DetectClothing(ctx context.Context, img ImagePart) (domain.ClothingDetection, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := c.client.GenerativeModel(c.model)
	it := model.GenerateContentStream(ctx,
		gai.Text(detectionPrompt),
		gai.Blob{MIMEType: orJPEG(img.MIME), Data: img.Data},
	)

	var text strings.Builder
	for {
		resp, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return domain.ClothingDetection{}, c.mapError(ctx, err)
		}
		collectText(resp, &text)
	}

	if text.Len() == 0 {
		return domain.ClothingDetection{}, fmt.Errorf("genai: detection returned no text: %w", domain.ErrEmptyResponse)
	}
	return parseDetection(text.String()), nil
}

func collectText(resp *gai.GenerateContentResponse, out *strings.Builder) {
	if resp == nil {
		return
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(gai.Text); ok {
				out.WriteString(string(t))
			}
		}
	}
}

// parseDetection extracts the JSON object from the model's reply; when the
// reply is not parseable it falls back to keyword sniffing so the caller
// always gets a usable verdict.
func parseDetection(response string) domain.ClothingDetection {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start != -1 && end > start {
		var det domain.ClothingDetection
		if err := json.Unmarshal([]byte(response[start:end+1]), &det); err == nil {
			if det.Category == "" {
				det.Category = "unknown"
			}
			return det
		}
	}
	return fallbackDetection(response)
}

func fallbackDetection(response string) domain.ClothingDetection {
	lower := strings.ToLower(response)
	isClothing := false
	for _, word := range []string{"shirt", "pants", "dress", "shoe", "clothing"} {
		if strings.Contains(lower, word) {
			isClothing = true
			break
		}
	}
	confidence := 0.0
	if isClothing {
		confidence = 0.5
	}
	return domain.ClothingDetection{
		IsClothing: isClothing,
		Category:   "unknown",
		Quality:    "fair",
		Suitable:   isClothing,
		Confidence: confidence,
	}
}
