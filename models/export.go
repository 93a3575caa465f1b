package models

import "strconv"

// MaxImages is the number of image columns the destination import format carries.
const MaxImages = 20

// ExportHeader is the fixed header row of the destination bulk-import CSV.
var ExportHeader = []string{
	"商品ID", "商品名", "種類ID", "種類名", "説明", "価格", "税率", "在庫数", "公開状態", "表示順", "種類在庫数",
	"画像1", "画像2", "画像3", "画像4", "画像5", "画像6", "画像7", "画像8", "画像9", "画像10",
	"画像11", "画像12", "画像13", "画像14", "画像15", "画像16", "画像17", "画像18", "画像19", "画像20",
	"商品コード", "種類コード", "JAN/GTIN",
}

// ExportRow is one destination listing row: a single color/size variant of an item.
type ExportRow struct {
	ProductID    string
	Name         string
	VariantID    string
	VariantName  string
	Description  string
	Price        int64
	TaxRate      int
	Stock        int
	PublishState int
	DisplayOrder int
	VariantStock int
	Images       [MaxImages]string
	ProductCode  string
	VariantCode  string
	GTIN         string
}

// Record flattens the row into CSV column order.
func (r ExportRow) Record() []string {
	record := make([]string, 0, len(ExportHeader))
	record = append(record,
		r.ProductID,
		r.Name,
		r.VariantID,
		r.VariantName,
		r.Description,
		strconv.FormatInt(r.Price, 10),
		strconv.Itoa(r.TaxRate),
		strconv.Itoa(r.Stock),
		strconv.Itoa(r.PublishState),
		strconv.Itoa(r.DisplayOrder),
		strconv.Itoa(r.VariantStock),
	)
	record = append(record, r.Images[:]...)
	return append(record, r.ProductCode, r.VariantCode, r.GTIN)
}

// ImageNames returns the non-blank image references of the row.
func (r ExportRow) ImageNames() []string {
	var names []string
	for _, name := range r.Images {
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}
