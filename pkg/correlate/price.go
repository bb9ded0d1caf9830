package correlate

import (
	"math"

	"github.com/Sriram-PR/price-reconciler/pkg/models"
)

// PriceDiff is (my-comp)/comp in percent, rounded to two decimals.
// A free competitor gives +Inf against a paid price and 0 against a free one;
// negative prices give N/A and NaN inputs give Error.
func PriceDiff(my, comp float64) models.PriceDiff {
	switch {
	case math.IsNaN(my) || math.IsNaN(comp):
		return models.PriceDiff{Kind: models.PriceDiffError}
	case comp > 0:
		return models.PriceDiff{Kind: models.PriceDiffValue, Value: round2((my - comp) / comp * 100)}
	case comp == 0 && my > 0:
		return models.PriceDiff{Kind: models.PriceDiffValue, Value: math.Inf(1)}
	case comp == 0 && my == 0:
		return models.PriceDiff{Kind: models.PriceDiffValue, Value: 0}
	}
	return models.PriceDiff{Kind: models.PriceDiffNA}
}

// IsCheaper reports whether the competitor is strictly cheaper
func IsCheaper(my, comp float64) bool {
	return comp < my
}
