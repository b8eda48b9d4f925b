package domain

import "sort"

// Cart maps book ID to requested quantity. It lives inside a user's session
// and is never persisted; the zero value of the map is not usable, use
// NewCart.
type Cart map[string]int

func NewCart() Cart {
	return make(Cart)
}

// Add increments the quantity for a book, creating the line if absent.
func (c Cart) Add(bookID string, qty int) {
	if qty <= 0 {
		return
	}
	c[bookID] += qty
}

// Set replaces the quantity for a book. A non-positive quantity removes the
// line.
func (c Cart) Set(bookID string, qty int) {
	if qty <= 0 {
		delete(c, bookID)
		return
	}
	c[bookID] = qty
}

func (c Cart) Remove(bookID string) {
	delete(c, bookID)
}

func (c Cart) Empty() bool {
	return len(c) == 0
}

// Count returns the total number of units across all lines.
func (c Cart) Count() int {
	n := 0
	for _, qty := range c {
		n += qty
	}
	return n
}

// BookIDs returns the cart's book IDs in sorted order. Checkout iterates
// lines in this order so concurrent checkouts lock book rows in the same
// sequence.
func (c Cart) BookIDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns an independent copy of the cart.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	for id, qty := range c {
		out[id] = qty
	}
	return out
}
