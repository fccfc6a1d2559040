package stockcount

import (
	"fmt"

	"stockcount-backend/internal/models"

	"github.com/shopspring/decimal"
)

// QuantityInput is one tuple of a batch submitted by a client.
type QuantityInput struct {
	ProductID       uint        `json:"product_id"`
	CountedQuantity RawQuantity `json:"counted_quantity"`
}

type SkippedInput struct {
	ProductID uint   `json:"product_id"`
	Reason    string `json:"reason"`
}

type UpsertResult struct {
	Accepted []uint         `json:"accepted"`
	Skipped  []SkippedInput `json:"skipped"`
}

type parsedInput struct {
	ProductID uint
	Quantity  decimal.Decimal
}

// parseBatch drops tuples without a usable quantity. The same product sent
// twice in one batch keeps the last value, like two separate requests would.
func parseBatch(inputs []QuantityInput) ([]parsedInput, []SkippedInput) {
	var skipped []SkippedInput
	index := map[uint]int{}
	var out []parsedInput
	for _, in := range inputs {
		if in.ProductID == 0 {
			skipped = append(skipped, SkippedInput{Reason: "product_id is required"})
			continue
		}
		q, ok := ParseQuantity(string(in.CountedQuantity))
		if !ok {
			reason := "quantity is empty"
			if string(in.CountedQuantity) != "" {
				reason = fmt.Sprintf("quantity %q is not a number", string(in.CountedQuantity))
			}
			skipped = append(skipped, SkippedInput{ProductID: in.ProductID, Reason: reason})
			continue
		}
		if i, dup := index[in.ProductID]; dup {
			out[i].Quantity = q
			continue
		}
		index[in.ProductID] = len(out)
		out = append(out, parsedInput{ProductID: in.ProductID, Quantity: q})
	}
	return out, skipped
}

// IsCounted reports whether a person entered a value for the item. Rows
// written through the upsert path carry the touched flag. Older rows fall back
// to the timestamp heuristic, which cannot tell a deliberate zero typed at
// creation time from a placeholder.
func IsCounted(it models.StockCountItem) bool {
	if it.Touched {
		return true
	}
	if it.CountedQuantity.Valid && !it.CountedQuantity.Decimal.IsZero() {
		return true
	}
	return it.UpdatedAt.After(it.CreatedAt)
}

// CategoryProgress summarizes one category of a count.
type CategoryProgress struct {
	Category string `json:"category"`
	Total    int    `json:"total"`
	Counted  int    `json:"counted"`
	Complete bool   `json:"complete"`
}

// Progress walks the ordering and reports completion per category. A category
// is complete when it has products and every one of them is counted with a
// quantity above zero. Counted still includes typed zeros.
func Progress(seq Sequence, items []models.StockCountItem) []CategoryProgress {
	byProduct := make(map[uint]models.StockCountItem, len(items))
	for _, it := range items {
		byProduct[it.ProductID] = it
	}
	out := make([]CategoryProgress, 0, len(seq.Categories))
	for _, cat := range seq.Categories {
		p := CategoryProgress{Category: cat}
		positive := 0
		for _, id := range seq.Products[cat] {
			it, ok := byProduct[id]
			if !ok {
				continue
			}
			p.Total++
			if IsCounted(it) {
				p.Counted++
				if it.CountedQuantity.Valid && it.CountedQuantity.Decimal.IsPositive() {
					positive++
				}
			}
		}
		p.Complete = p.Total > 0 && positive == p.Total
		out = append(out, p)
	}
	return out
}
