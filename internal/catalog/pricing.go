package catalog

// SelectPrice picks the effective unit price: the promotional price wins whenever
// it is set, including an explicit zero; otherwise the standard price applies;
// when neither is set the price is 0. Promotional date windows are informational
// and not checked here; callers that need window enforcement must filter
// promotions before resolving.
func SelectPrice(promo, standard *float64) float64 {
	if promo != nil {
		return *promo
	}
	if standard != nil {
		return *standard
	}
	return 0
}

// EffectivePrice resolves a product's selling price.
func (p Product) EffectivePrice() float64 {
	return SelectPrice(p.PromoPrice, &p.StandardPrice)
}

// EffectivePrice resolves a kit's selling price.
func (k Kit) EffectivePrice() float64 {
	return SelectPrice(k.PromoPrice, &k.StandardPrice)
}
