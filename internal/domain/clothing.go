package domain

import "time"

// ClothingCategory is the closed set of closet categories.
type ClothingCategory string

const (
	CategoryShirtsTops   ClothingCategory = "shirts_tops"
	CategoryPantsBottoms ClothingCategory = "pants_bottoms"
	CategoryShoes        ClothingCategory = "shoes"
)

// ValidCategory reports whether c is a recognized closet category.
// Categories are validated on every write.
func ValidCategory(c ClothingCategory) bool {
	switch c {
	case CategoryShirtsTops, CategoryPantsBottoms, CategoryShoes:
		return true
	}
	return false
}

// ClothingItem is a user-owned closet entry.
type ClothingItem struct {
	ID           string           `json:"id"`
	UserID       string           `json:"user_id"`
	Category     ClothingCategory `json:"category"`
	Name         string           `json:"name"`
	ImageURL     string           `json:"image_url"`
	ThumbnailURL string           `json:"thumbnail_url,omitempty"`
	IsActive     bool             `json:"is_active"`
	CreatedAt    time.Time        `json:"created_at"`
	Metadata     []byte           `json:"-"`
}

// BasePhoto is the user-supplied reference photo used as the generation subject.
type BasePhoto struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ImageURL  string    `json:"image_url"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// ClothingDetection is the model's assessment of an uploaded image.
type ClothingDetection struct {
	IsClothing bool    `json:"is_clothing"`
	Category   string  `json:"category"`
	Quality    string  `json:"quality"`
	Suitable   bool    `json:"suitable"`
	Confidence float64 `json:"confidence"`
}
