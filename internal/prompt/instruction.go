package prompt

import (
	"fmt"
	"strings"

	"mycloset/internal/domain"
)

// ClothingRef is the slice of clothing metadata the instruction builder needs.
type ClothingRef struct {
	Category domain.ClothingCategory
	Name     string
}

const baseInstruction = "You are a professional fashion AI assistant. " +
	"Generate a realistic photo of the person from the base photo wearing the provided clothing items. " +
	"Keep the person's facial features, body proportions, skin tone and pose unchanged. " +
	"Match lighting and shadows so the result looks like a real photograph."

const genericConstraint = "Dress the person in all provided clothing items so each fits naturally on the body."

// BuildTryOnInstruction assembles the generation instruction from the base
// prompt, one region-restriction clause per recognized category, and a listing
// of the selected items. Deterministic string templating, no learned logic.
func BuildTryOnInstruction(items []ClothingRef) string {
	parts := []string{baseInstruction}

	clauses := regionClauses(items)
	if len(clauses) == 0 {
		parts = append(parts, genericConstraint)
	} else {
		parts = append(parts, clauses...)
	}

	for idx, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = "clothing item"
		}
		parts = append(parts, fmt.Sprintf("Clothing item %d: %s (%s).", idx+1, name, item.Category))
	}

	return strings.Join(parts, " ")
}

// regionClauses emits at most one clause per recognized category, each
// restricting edits to its body region and freezing the rest of the image.
func regionClauses(items []ClothingRef) []string {
	var clauses []string
	seen := map[domain.ClothingCategory]bool{}
	for _, item := range items {
		if seen[item.Category] {
			continue
		}
		switch item.Category {
		case domain.CategoryShirtsTops:
			clauses = append(clauses, "Edit only the torso and upper-body clothing region; preserve every other part of the image pixel-for-pixel.")
		case domain.CategoryPantsBottoms:
			clauses = append(clauses, "Edit only the hips-to-ankles clothing region; preserve every other part of the image pixel-for-pixel.")
		case domain.CategoryShoes:
			clauses = append(clauses, "Edit only the feet and footwear region; preserve every other part of the image pixel-for-pixel.")
		default:
			continue
		}
		seen[item.Category] = true
	}
	return clauses
}
