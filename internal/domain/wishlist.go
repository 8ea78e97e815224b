package domain

type WishlistEntry struct {
	ProductID ProductID `json:"product_id"`
	Product   Product   `json:"product"`
}

type Wishlist struct {
	Entries []WishlistEntry `json:"entries"`
}

func (w Wishlist) Contains(id ProductID) bool {
	for _, e := range w.Entries {
		if e.ProductID == id {
			return true
		}
	}
	return false
}

func (w Wishlist) Without(id ProductID) Wishlist {
	entries := make([]WishlistEntry, 0, len(w.Entries))
	for _, e := range w.Entries {
		if e.ProductID != id {
			entries = append(entries, e)
		}
	}
	return Wishlist{Entries: entries}
}
