package stockcount

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var quantityPattern = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)

// Bounds of the decimal(14,3) quantity columns.
const quantityScale = 3

var maxQuantity = decimal.New(1, 14-quantityScale)

// ParseQuantity accepts "12", "12.5" and "12,5". Empty, negative or otherwise
// malformed input reports ok=false and must not be stored, and so does a value
// the column cannot hold exactly (11 integer digits, 3 decimals).
func ParseQuantity(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, false
	}
	if strings.Count(s, ",")+strings.Count(s, ".") > 1 {
		return decimal.Decimal{}, false
	}
	s = strings.Replace(s, ",", ".", 1)
	if !quantityPattern.MatchString(s) {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if d.GreaterThanOrEqual(maxQuantity) || !d.Equal(d.Truncate(quantityScale)) {
		return decimal.Decimal{}, false
	}
	return d, true
}

// RawQuantity keeps the client's input as text whether it was sent as a JSON
// string, a JSON number or null.
type RawQuantity string

func (q *RawQuantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*q = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*q = RawQuantity(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		// Anything else (bool, object) is kept unparseable instead of failing the batch.
		*q = RawQuantity(string(b))
		return nil
	}
	*q = RawQuantity(n.String())
	return nil
}
