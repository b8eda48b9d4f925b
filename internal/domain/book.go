package domain

import "time"

type Book struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Stock       int       `json:"stock"`
	SellerID    *string   `json:"seller_id,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SystemOwned reports whether the book has no owning seller.
func (b *Book) SystemOwned() bool {
	return b.SellerID == nil
}
