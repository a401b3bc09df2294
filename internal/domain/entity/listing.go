package entity

// Listing represents a marketplace record offering energy at a unit price.
// Amount and Price are human-readable decimals converted from 18-decimal base units.
type Listing struct {
	ID         uint64  `json:"id"`
	Seller     Account `json:"seller"`
	Amount     string  `json:"amount"`
	Price      string  `json:"price"`
	EnergyType string  `json:"energy_type"`
	IsActive   bool    `json:"is_active"`
}

// Clone returns a copy of the listing
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

// CloneListings copies a listing collection so callers can't mutate the original
func CloneListings(listings []*Listing) []*Listing {
	out := make([]*Listing, 0, len(listings))
	for _, l := range listings {
		out = append(out, l.Clone())
	}
	return out
}
