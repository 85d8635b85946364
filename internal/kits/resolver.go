// Package kits derives buildable quantities for composite products from their
// components' on-hand stock.
package kits

import "github.com/meridian-retail/meridian-retail/internal/catalog"

// MaxBuildable computes the maximum number of kit units constructible from the
// given component stock. The result is the minimum over floor(stock/required)
// across components. A kit with no components is unbuildable, as is any kit
// with a non-positive required quantity. Components missing from the stock map
// count as zero on hand.
//
// This is the single availability function for every caller: catalog search,
// checkout preconditions, stock reports and stocktake refresh all go through it.
func MaxBuildable(components []catalog.KitComponent, stock map[int64]int) int {
	if len(components) == 0 {
		return 0
	}
	buildable := -1
	for _, c := range components {
		if c.QtyRequired <= 0 {
			return 0
		}
		onHand := stock[c.ProductID]
		if onHand < 0 {
			onHand = 0
		}
		n := onHand / c.QtyRequired
		if buildable < 0 || n < buildable {
			buildable = n
		}
	}
	if buildable < 0 {
		return 0
	}
	return buildable
}
