package domain

// MinBillableGrams is the smallest parcel weight the provider accepts;
// zero-weight orders are billed at this floor.
const MinBillableGrams = 100

// WeightedLine carries the quantities and unit weights of one order line.
// VariantGrams of zero means the line's unit has no own weight and the
// product weight applies.
type WeightedLine struct {
	Qty          int
	VariantGrams int
	ProductGrams int
}

func (l WeightedLine) unitGrams() int {
	if l.VariantGrams > 0 {
		return l.VariantGrams
	}
	return l.ProductGrams
}

// BillableWeightGrams sums line weights for the shipping document, floored
// at the provider minimum.
func BillableWeightGrams(lines []WeightedLine) int {
	total := 0
	for _, l := range lines {
		total += l.Qty * l.unitGrams()
	}
	if total < MinBillableGrams {
		return MinBillableGrams
	}
	return total
}
