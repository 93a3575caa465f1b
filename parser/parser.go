package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-storefront-export/models"
)

// ValidateDetail ensures the collector captured the required fields.
func ValidateDetail(d *models.ItemDetail) error {
	if d == nil {
		return fmt.Errorf("detail is nil")
	}
	if strings.TrimSpace(d.ItemID) == "" {
		return fmt.Errorf("detail missing item id")
	}
	if strings.TrimSpace(d.ItemName) == "" {
		return fmt.Errorf("detail missing item name for %s", d.ItemID)
	}
	return nil
}

// NormalizeNumber strips whitespace and surrounding quotes from a raw numeric value.
func NormalizeNumber(text string) string {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, `"`)
	return strings.TrimSpace(text)
}

// ParseCount converts a raw numeric value to an int. Fractions are truncated
// and anything unparsable yields zero.
func ParseCount(text string) int {
	text = NormalizeNumber(text)
	if text == "" {
		return 0
	}
	if n, err := strconv.Atoi(text); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return int(f)
}
