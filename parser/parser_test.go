package parser

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/aluiziolira/go-storefront-export/models"
)

const samplePayload = `<script>window.runParams = {"data":{"storeModule":{"storeName":"Sunny &amp; Co","storeNum":912345},` +
	`"titleModule":{"subject":"Summer Dress","tradeCount":1520,"feedbackRating":{"averageStar":"4.8","totalValidNum":312}},` +
	`"priceModule":{"actSkuCalPrice":"12.50","skuCalPrice":"25.00","discount":50},` +
	`"skuModule":{"productSKUPropertyList":[` +
	`{"order":1,"skuPropertyId":14,"skuPropertyName":"Color","skuPropertyValues":[{"propertyValueDisplayName":"red"},{"propertyValueDisplayName":"navy &amp; white"}]},` +
	`{"order":2,"skuPropertyId":5,"skuPropertyName":"Size","skuPropertyValues":[{"propertyValueDisplayName":"s"},{"propertyValueDisplayName":"m"}]}]},` +
	`"imageModule":{"imagePathList":["https://cdn.example/a.jpg","https://cdn.example/b.png",""]}}};</script>`

func TestValidateDetail(t *testing.T) {
	tests := []struct {
		name    string
		detail  *models.ItemDetail
		wantErr bool
	}{
		{
			name: "valid detail",
			detail: &models.ItemDetail{
				ItemID:    "1005001",
				ItemName:  "Summer Dress",
				CreatedAt: time.Now(),
			},
			wantErr: false,
		},
		{
			name:    "missing item id",
			detail:  &models.ItemDetail{ItemName: "Summer Dress"},
			wantErr: true,
		},
		{
			name:    "missing item name",
			detail:  &models.ItemDetail{ItemID: "1005001", ItemName: "  "},
			wantErr: true,
		},
		{
			name:    "nil detail",
			detail:  nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDetail(tt.detail)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDetail() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{name: "integer", input: "312", expected: 312},
		{name: "quoted", input: `"1520"`, expected: 1520},
		{name: "fraction truncated", input: "4.8", expected: 4},
		{name: "whitespace", input: "  7 ", expected: 7},
		{name: "empty", input: "", expected: 0},
		{name: "garbage", input: "abc", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCount(tt.input); got != tt.expected {
				t.Errorf("ParseCount(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestExtractScalar(t *testing.T) {
	sc := NewScanner([]byte(samplePayload))

	tests := []struct {
		name     string
		field    ScalarField
		expected string
	}{
		{name: "string decoded", field: ScalarField{Names: []string{"storeName"}}, expected: "Sunny & Co"},
		{name: "price text", field: ScalarField{Names: []string{"actSkuCalPrice"}}, expected: "12.50"},
		{name: "numeric before comma", field: ScalarField{Names: []string{"tradeCount"}, Numeric: true}, expected: "1520"},
		{name: "numeric before brace", field: ScalarField{Names: []string{"totalValidNum"}, Numeric: true}, expected: "312"},
		{name: "missing string", field: ScalarField{Names: []string{"nope"}}, expected: ""},
		{name: "missing numeric", field: ScalarField{Names: []string{"nope"}, Numeric: true}, expected: "0"},
		{name: "second candidate", field: ScalarField{Names: []string{"title", "subject"}}, expected: "Summer Dress"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractScalar(sc, tt.field)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("ExtractScalar(%v) = %q, want %q", tt.field.Names, got, tt.expected)
			}
		})
	}
}

func TestExtractScalarUnterminated(t *testing.T) {
	sc := NewScanner([]byte(`{"subject":"never closed`))
	_, err := ExtractScalar(sc, ScalarField{Names: []string{"subject"}})
	if !errors.Is(err, ErrUnterminated) {
		t.Fatalf("expected ErrUnterminated, got %v", err)
	}
}

func TestExtractList(t *testing.T) {
	sc := NewScanner([]byte(samplePayload))

	colors, err := ExtractList(sc, colorsField)
	if err != nil {
		t.Fatalf("colors: %v", err)
	}
	if want := []string{"RED", "NAVY & WHITE"}; !reflect.DeepEqual(colors, want) {
		t.Fatalf("colors = %v, want %v", colors, want)
	}

	sizes, err := ExtractList(sc, sizesField)
	if err != nil {
		t.Fatalf("sizes: %v", err)
	}
	if want := []string{"S", "M"}; !reflect.DeepEqual(sizes, want) {
		t.Fatalf("sizes = %v, want %v", sizes, want)
	}
}

func TestExtractListLabelAnchor(t *testing.T) {
	// Size listed before color: labels must win over occurrence order.
	payload := `{"skuPropertyName":"&#12469;&#12452;&#12474;","skuPropertyValues":[{"propertyValueDisplayName":"xl"}]},` +
		`{"skuPropertyName":"&#33394;","skuPropertyValues":[{"propertyValueDisplayName":"black"}]}`
	sc := NewScanner([]byte(payload))

	colors, err := ExtractList(sc, colorsField)
	if err != nil {
		t.Fatalf("colors: %v", err)
	}
	if want := []string{"BLACK"}; !reflect.DeepEqual(colors, want) {
		t.Fatalf("colors = %v, want %v", colors, want)
	}

	sizes, err := ExtractList(sc, sizesField)
	if err != nil {
		t.Fatalf("sizes: %v", err)
	}
	if want := []string{"XL"}; !reflect.DeepEqual(sizes, want) {
		t.Fatalf("sizes = %v, want %v", sizes, want)
	}
}

func TestExtractListOccurrenceFallback(t *testing.T) {
	payload := `{"skuPropertyName":"Style","skuPropertyValues":[{"propertyValueDisplayName":"a"}]},` +
		`{"skuPropertyName":"Length","skuPropertyValues":[{"propertyValueDisplayName":"b"}]}`
	sc := NewScanner([]byte(payload))

	sizes, err := ExtractList(sc, sizesField)
	if err != nil {
		t.Fatalf("sizes: %v", err)
	}
	if want := []string{"B"}; !reflect.DeepEqual(sizes, want) {
		t.Fatalf("sizes = %v, want %v", sizes, want)
	}
}

func TestExtractListMissingAndErrors(t *testing.T) {
	t.Run("missing marker", func(t *testing.T) {
		got, err := ExtractList(NewScanner([]byte(`{"subject":"x",}`)), colorsField)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected empty list, got %v", got)
		}
	})

	t.Run("unterminated", func(t *testing.T) {
		_, err := ExtractList(NewScanner([]byte(`"skuPropertyValues":[{"propertyValueDisplayName":"red"`)), colorsField)
		if !errors.Is(err, ErrUnterminated) {
			t.Fatalf("expected ErrUnterminated, got %v", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ExtractList(NewScanner([]byte(`"skuPropertyValues":[{"propertyValueDisplayName":red}]}`)), colorsField)
		if !errors.Is(err, ErrMalformedList) {
			t.Fatalf("expected ErrMalformedList, got %v", err)
		}
	})
}

func TestExtractImageURLs(t *testing.T) {
	got, err := ExtractImageURLs(NewScanner([]byte(samplePayload)), imagesField)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"https://cdn.example/a.jpg", "https://cdn.example/b.png"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("images = %v, want %v", got, want)
	}

	empty, err := ExtractImageURLs(NewScanner([]byte(`{}`)), imagesField)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list, got %v (%v)", empty, err)
	}
}

func TestAliExpressSourceExtractDetail(t *testing.T) {
	fields, err := AliExpressSource{}.ExtractDetail([]byte(samplePayload))
	if err != nil {
		t.Fatalf("extract detail: %v", err)
	}

	if fields.StoreName != "Sunny & Co" || fields.ItemName != "Summer Dress" {
		t.Fatalf("unexpected names: %+v", fields)
	}
	if fields.Price != "12.50" || fields.OriginalPrice != "25.00" {
		t.Fatalf("unexpected prices: %q %q", fields.Price, fields.OriginalPrice)
	}
	if fields.Discount != "50" || fields.ReviewScore != "4.8" || fields.ReviewCount != "312" || fields.SalesCount != "1520" {
		t.Fatalf("unexpected counters: %+v", fields)
	}
	if len(fields.Colors) != 2 || len(fields.Sizes) != 2 || len(fields.ImageURLs) != 2 {
		t.Fatalf("unexpected lists: %+v", fields)
	}
}

func TestExtractScalarLastKeyInObject(t *testing.T) {
	payload := `{"storeModule":{"storeName":"Sunny Store"},"titleModule":{"subject":"Linen \"Deluxe\" Shirt"}}`
	sc := NewScanner([]byte(payload))

	tests := []struct {
		name     string
		field    ScalarField
		expected string
	}{
		{name: "closes object", field: ScalarField{Names: []string{"storeName"}}, expected: "Sunny Store"},
		{name: "escaped quotes", field: ScalarField{Names: []string{"subject"}}, expected: `Linen \"Deluxe\" Shirt`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractScalar(sc, tt.field)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("ExtractScalar(%v) = %q, want %q", tt.field.Names, got, tt.expected)
			}
		})
	}
}

func TestAliExpressSourceSingleProperty(t *testing.T) {
	tests := []struct {
		name   string
		block  string
		colors []string
		sizes  []string
	}{
		{
			name:   "size only",
			block:  `{"skuPropertyName":"Size","skuPropertyValues":[{"propertyValueDisplayName":"s"},{"propertyValueDisplayName":"m"}]}`,
			colors: []string{},
			sizes:  []string{"S", "M"},
		},
		{
			name:   "color only",
			block:  `{"skuPropertyName":"&#33394;","skuPropertyValues":[{"propertyValueDisplayName":"red"}]}`,
			colors: []string{"RED"},
			sizes:  []string{},
		},
		{
			name:   "unlabelled blocks",
			block:  `{"skuPropertyName":"Style","skuPropertyValues":[{"propertyValueDisplayName":"a"}]},{"skuPropertyName":"Length","skuPropertyValues":[{"propertyValueDisplayName":"b"}]}`,
			colors: []string{"A"},
			sizes:  []string{"B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := `{"subject":"Dress","skuModule":{"productSKUPropertyList":[` + tt.block + `]}}`
			fields, err := AliExpressSource{}.ExtractDetail([]byte(payload))
			if err != nil {
				t.Fatalf("extract detail: %v", err)
			}
			if !reflect.DeepEqual(fields.Colors, tt.colors) {
				t.Fatalf("colors = %v, want %v", fields.Colors, tt.colors)
			}
			if !reflect.DeepEqual(fields.Sizes, tt.sizes) {
				t.Fatalf("sizes = %v, want %v", fields.Sizes, tt.sizes)
			}
		})
	}
}
