package domain

// CartSnapshot is the persisted form of a cart. Totals are not stored; they
// are derived again on load.
type CartSnapshot struct {
	Items []CartLineItem `json:"items"`
}

func (s CartSnapshot) State() CartState {
	return NewCartState(s.Items)
}
