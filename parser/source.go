package parser

// Fields is the raw field set read from one detail page. Prices stay as
// source-currency text; conversion happens in the collector.
type Fields struct {
	StoreName     string
	ItemName      string
	Price         string
	OriginalPrice string
	Discount      string
	Colors        []string
	Sizes         []string
	ReviewScore   string
	ReviewCount   string
	SalesCount    string
	ImageURLs     []string
}

// DetailSource extracts Fields from a detail page payload.
type DetailSource interface {
	ExtractDetail(payload []byte) (Fields, error)
}

// AliExpressSource reads the runParams blob of an AliExpress item page.
type AliExpressSource struct{}

var (
	storeNameField     = ScalarField{Names: []string{"storeName"}}
	subjectField       = ScalarField{Names: []string{"subject"}}
	priceField         = ScalarField{Names: []string{"actSkuCalPrice"}}
	originalPriceField = ScalarField{Names: []string{"skuCalPrice"}}
	discountField      = ScalarField{Names: []string{"discount"}, Numeric: true}
	reviewScoreField   = ScalarField{Names: []string{"averageStar"}}
	reviewCountField   = ScalarField{Names: []string{"totalValidNum"}, Numeric: true}
	salesField         = ScalarField{Names: []string{"tradeCount"}, Numeric: true}
	imagesField        = ImageField{Name: "imagePathList"}

	colorsField = ListField{
		Name:       "colors",
		Occurrence: 1,
		Labels:     []string{`"skuPropertyName":"Color"`, `"skuPropertyName":"&#33394;"`, `"skuPropertyName":"色"`},
	}
	sizesField = ListField{
		Name:       "sizes",
		Occurrence: 2,
		Labels:     []string{`"skuPropertyName":"Size"`, `"skuPropertyName":"&#12469;&#12452;&#12474;"`, `"skuPropertyName":"サイズ"`},
	}
)

// ExtractDetail implements DetailSource.
func (AliExpressSource) ExtractDetail(payload []byte) (Fields, error) {
	sc := NewScanner(payload)
	var (
		f   Fields
		err error
	)

	scalars := []struct {
		field ScalarField
		dst   *string
	}{
		{storeNameField, &f.StoreName},
		{subjectField, &f.ItemName},
		{priceField, &f.Price},
		{originalPriceField, &f.OriginalPrice},
		{discountField, &f.Discount},
		{reviewScoreField, &f.ReviewScore},
		{reviewCountField, &f.ReviewCount},
		{salesField, &f.SalesCount},
	}
	for _, s := range scalars {
		if *s.dst, err = ExtractScalar(sc, s.field); err != nil {
			return Fields{}, err
		}
	}

	lists, err := ExtractLists(sc, colorsField, sizesField)
	if err != nil {
		return Fields{}, err
	}
	f.Colors, f.Sizes = lists[0], lists[1]
	if f.ImageURLs, err = ExtractImageURLs(sc, imagesField); err != nil {
		return Fields{}, err
	}
	return f, nil
}
