package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-storefront-export/models"
)

const (
	taxRate         = 1
	publishState    = 0
	displayOrder    = 1
	variantStock    = 100
	stockPerSize    = 100
	variantLabelSep = " "
)

// Pricing holds the destination listing price formula constants.
type Pricing struct {
	PlatformFeePercent float64
	ShippingFee        int64
	ProfitMargin       int64
}

// Expander turns an item detail into one export row per color and size.
type Expander struct {
	pricing Pricing
	itemURL func(itemID string) string
}

// NewExpander builds an Expander. itemURL renders the item page link used in descriptions.
func NewExpander(pricing Pricing, itemURL func(itemID string) string) *Expander {
	return &Expander{pricing: pricing, itemURL: itemURL}
}

// SalePrice applies the platform fee, shipping and margin to a converted price.
func (e *Expander) SalePrice(price int64) int64 {
	fee := int64(math.Floor(float64(price) * e.pricing.PlatformFeePercent / 100))
	return price + fee + e.pricing.ShippingFee + e.pricing.ProfitMargin
}

// Description renders the listing description: item link, then review and sales lines.
func (e *Expander) Description(d models.ItemDetail) string {
	var b strings.Builder
	if e.itemURL != nil {
		b.WriteString(e.itemURL(d.ItemID))
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "レビュー: %s\n", d.ReviewScore)
	fmt.Fprintf(&b, "レビュー数: %d\n", d.ReviewCount)
	fmt.Fprintf(&b, "販売数: %d\n", d.SalesCount)
	return b.String()
}

// Expand returns the rows of d in color-major, size-minor order. An empty
// color or size list counts as a single blank entry.
func (e *Expander) Expand(d models.ItemDetail) []models.ExportRow {
	colors := orBlank(d.Colors)
	sizes := orBlank(d.Sizes)

	price := e.SalePrice(d.Price)
	description := e.Description(d)

	var images [models.MaxImages]string
	for i, imageURL := range d.ImageURLs {
		if i >= models.MaxImages {
			break
		}
		images[i] = ImageName(d.ItemID, i+1, imageURL)
	}

	rows := make([]models.ExportRow, 0, len(colors)*len(sizes))
	seq := 1
	for _, color := range colors {
		for _, size := range sizes {
			rows = append(rows, models.ExportRow{
				Name:         d.ItemName,
				VariantName:  strings.ToUpper(color) + variantLabelSep + strings.ToUpper(size),
				Description:  description,
				Price:        price,
				TaxRate:      taxRate,
				Stock:        len(sizes) * stockPerSize,
				PublishState: publishState,
				DisplayOrder: displayOrder,
				VariantStock: variantStock,
				Images:       images,
				ProductCode:  d.ItemID,
				VariantCode:  d.ItemID + "_" + strconv.Itoa(seq),
				GTIN:         d.StoreID + d.ItemID + strconv.Itoa(seq),
			})
			seq++
		}
	}
	return rows
}

func orBlank(values []string) []string {
	if len(values) == 0 {
		return []string{""}
	}
	return values
}
