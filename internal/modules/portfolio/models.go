package portfolio

// Line is one priced position in a valuation snapshot
type Line struct {
	Symbol string  `json:"symbol"`
	Shares int64   `json:"shares"`
	Price  float64 `json:"price"`
	Total  float64 `json:"total"`
}

// Snapshot is a point-in-time valuation of an account: every priceable
// holding, the cash balance, and their sum. It is read-only and not
// transactional; symbols that could not be priced are listed in
// Unpriced rather than failing the whole snapshot.
type Snapshot struct {
	Lines      []Line   `json:"lines"`
	Cash       float64  `json:"cash"`
	GrandTotal float64  `json:"grand_total"`
	Unpriced   []string `json:"unpriced,omitempty"`
}
