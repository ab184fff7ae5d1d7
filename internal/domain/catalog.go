package domain

import "time"

// Product is the catalog entry sold through the store. Stock and TotalSold are
// the only fields mutated outside admin edits; the stock ledger owns them.
type Product struct {
	ID            string
	Name          string
	Slug          string
	Description   string
	Price         int64
	DiscountPrice *int64
	Stock         int64
	LowStockAlert int64
	TotalSold     int64
	IsPublished   bool
	IsFeatured    bool
	IsDeleted     bool
	RatingAvg     float64
	RatingCount   int64
	CategoryID    string
	Images        []MediaObject
	SEO           SEOMetadata
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EffectivePrice returns the price a buyer pays right now: the discount price
// when one is set, the list price otherwise.
func (p Product) EffectivePrice() int64 {
	if p.DiscountPrice != nil && *p.DiscountPrice > 0 && *p.DiscountPrice < p.Price {
		return *p.DiscountPrice
	}
	return p.Price
}

// Purchasable reports whether the product can appear on a new order.
func (p Product) Purchasable() bool {
	return p.IsPublished && !p.IsDeleted
}

// LowOnStock reports whether stock has fallen to or below the alert threshold.
func (p Product) LowOnStock() bool {
	return p.LowStockAlert > 0 && p.Stock <= p.LowStockAlert
}

// SEOMetadata carries the derived search metadata stored alongside a product.
type SEOMetadata struct {
	MetaTitle       string
	MetaDescription string
	Keywords        []string
}

// Category is a single-level taxonomy node for products.
type Category struct {
	ID          string
	Name        string
	Slug        string
	Description string
	Image       *MediaObject
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Review is a user rating attached to a product. Rating aggregates on the
// product are updated in the same transaction as the review write.
type Review struct {
	ID        string
	ProductID string
	UserID    string
	UserName  string
	Rating    int
	Comment   string
	CreatedAt time.Time
}
