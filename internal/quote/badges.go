package quote

// AssignBadges marks the cheapest and fastest quotes in place and returns
// the same slice. Every quote tied on the minimum is marked; a quote may
// carry both badges. Empty input is returned unchanged.
func AssignBadges(quotes []Quote) []Quote {
	if len(quotes) == 0 {
		return quotes
	}

	minPrice := quotes[0].Price
	minDays := quotes[0].EstimatedDays
	for _, q := range quotes[1:] {
		if q.Price < minPrice {
			minPrice = q.Price
		}
		if q.EstimatedDays < minDays {
			minDays = q.EstimatedDays
		}
	}

	for i := range quotes {
		quotes[i].IsCheapest = quotes[i].Price == minPrice
		quotes[i].IsFastest = quotes[i].EstimatedDays == minDays
	}
	return quotes
}
