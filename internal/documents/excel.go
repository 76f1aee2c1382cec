// Package documents renders the PDFs and spreadsheets the dashboard downloads.
package documents

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/jafarshop/opsapi/internal/domain"
)

const productSheet = "Products"

// ProductColumns is the header row of the bulk upload template
var ProductColumns = []string{"SKU", "Name", "Category", "Price", "Weight (g)"}

// ProductRow is one parsed data row; Row is the 1-based sheet row
type ProductRow struct {
	Row         int
	SKU         string
	Name        string
	Category    string
	Price       decimal.Decimal
	WeightGrams int
}

// RowError describes why a row was rejected
type RowError struct {
	Row     int    `json:"row"`
	SKU     string `json:"sku,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ResultRow is written back to the result workbook
type ResultRow struct {
	Row     int
	SKU     string
	Status  string // created, updated, skipped, error
	Message string
}

// ProductTemplate returns an empty workbook with the header row and one example
func ProductTemplate() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", productSheet); err != nil {
		return nil, err
	}
	if err := writeRow(f, productSheet, 1, toCells(ProductColumns)); err != nil {
		return nil, err
	}
	if err := writeRow(f, productSheet, 2, []interface{}{"TSHIRT-BLK-M", "Black T-shirt (M)", "Apparel", 499, 250}); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(productSheet, "A", "B", 24); err != nil {
		return nil, err
	}
	return toBytes(f)
}

// ParseProductSheet reads the first sheet. Rows with bad cells are reported and left out of rows.
// Blank rows are skipped.
func ParseProductSheet(r io.Reader) ([]ProductRow, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	all, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}
	if !strings.EqualFold(cell(all[0], 0), "SKU") {
		return nil, nil, fmt.Errorf("first column header must be SKU")
	}

	var rows []ProductRow
	var rowErrs []RowError
	for i, raw := range all[1:] {
		n := i + 2
		if isBlank(raw) {
			continue
		}
		row := ProductRow{
			Row:      n,
			SKU:      strings.TrimSpace(cell(raw, 0)),
			Name:     strings.TrimSpace(cell(raw, 1)),
			Category: strings.TrimSpace(cell(raw, 2)),
		}
		bad := false
		if row.SKU == "" {
			rowErrs = append(rowErrs, RowError{Row: n, Field: "sku", Message: "SKU is required"})
			bad = true
		}
		if p := strings.TrimSpace(cell(raw, 3)); p != "" {
			price, err := decimal.NewFromString(p)
			switch {
			case err != nil:
				rowErrs = append(rowErrs, RowError{Row: n, SKU: row.SKU, Field: "price", Message: "price must be a number"})
				bad = true
			case price.IsNegative():
				rowErrs = append(rowErrs, RowError{Row: n, SKU: row.SKU, Field: "price", Message: "price must be >= 0"})
				bad = true
			default:
				row.Price = price
			}
		}
		if w := strings.TrimSpace(cell(raw, 4)); w != "" {
			weight, err := strconv.Atoi(w)
			switch {
			case err != nil:
				rowErrs = append(rowErrs, RowError{Row: n, SKU: row.SKU, Field: "weight", Message: "weight must be a whole number of grams"})
				bad = true
			case weight < 0:
				rowErrs = append(rowErrs, RowError{Row: n, SKU: row.SKU, Field: "weight", Message: "weight must be >= 0"})
				bad = true
			default:
				row.WeightGrams = weight
			}
		}
		if !bad {
			rows = append(rows, row)
		}
	}
	return rows, rowErrs, nil
}

// ProductUploadResult renders per-row outcomes of a bulk upload
func ProductUploadResult(results []ResultRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Result"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if err := writeRow(f, sheet, 1, []interface{}{"Row", "SKU", "Status", "Message"}); err != nil {
		return nil, err
	}
	for i, r := range results {
		if err := writeRow(f, sheet, i+2, []interface{}{r.Row, r.SKU, r.Status, r.Message}); err != nil {
			return nil, err
		}
	}
	return toBytes(f)
}

// PurchaseOrdersExport renders one line per PO item. names resolves supplier and warehouse ids.
func PurchaseOrdersExport(pos []*domain.PurchaseOrder, names map[uuid.UUID]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Purchase Orders"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	header := []interface{}{"PO Number", "Status", "Supplier", "Warehouse", "Expected Date", "SKU", "Product", "Ordered", "Received", "Rejected", "Unit Cost", "Line Total", "Created At"}
	if err := writeRow(f, sheet, 1, header); err != nil {
		return nil, err
	}
	row := 2
	for _, po := range pos {
		expected := ""
		if po.ExpectedDate != nil {
			expected = po.ExpectedDate.Format("2006-01-02")
		}
		for _, it := range po.Items {
			lineTotal := it.UnitCost.Mul(decimal.NewFromInt(int64(it.OrderedQty)))
			values := []interface{}{
				po.Number, string(po.Status), names[po.SupplierID], names[po.WarehouseID], expected,
				it.SKU, it.ProductName, it.OrderedQty, it.ReceivedQty, it.RejectedQty,
				it.UnitCost.InexactFloat64(), lineTotal.InexactFloat64(), po.CreatedAt.Format("2006-01-02 15:04"),
			}
			if err := writeRow(f, sheet, row, values); err != nil {
				return nil, err
			}
			row++
		}
	}
	return toBytes(f)
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	start, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, start, &values)
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func toBytes(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
