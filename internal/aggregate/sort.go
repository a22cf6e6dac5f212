package aggregate

import (
	"sort"

	"token-sentry/internal/domain"
)

func sortBundles(bundles []*domain.Bundle) {
	sort.Slice(bundles, func(i, j int) bool {
		if bundles[i].Mint != bundles[j].Mint {
			return bundles[i].Mint < bundles[j].Mint
		}
		return bundles[i].Slot < bundles[j].Slot
	})
}
