package documents

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"

	"github.com/jafarshop/opsapi/internal/domain"
)

// SlipStore is the sender block printed on every slip
type SlipStore struct {
	Name string
	Shop string
}

// ShippingSlips renders one A4 page per order
func ShippingSlips(store SlipStore, orders []*domain.Order) ([]byte, error) {
	if len(orders) == 0 {
		return nil, fmt.Errorf("no orders to print")
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, o := range orders {
		pdf.AddPage()

		pdf.SetFont("Helvetica", "B", 16)
		pdf.CellFormat(0, 10, tr(firstNonEmpty(store.Name, store.Shop)), "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(store.Shop), "", 1, "L", false, 0, "")
		pdf.Ln(4)

		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(95, 8, tr("Order "+o.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(95, 8, tr("AWB "+firstNonEmpty(o.AWB, "-")), "1", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		pdf.CellFormat(95, 8, tr("Courier: "+firstNonEmpty(o.Courier, "-")), "1", 0, "L", false, 0, "")
		payment := "PREPAID"
		if o.IsCOD {
			payment = fmt.Sprintf("COD %s %s", o.Currency, o.TotalPrice.StringFixed(2))
		}
		pdf.CellFormat(95, 8, tr(payment), "1", 1, "L", false, 0, "")
		pdf.Ln(4)

		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(0, 7, "Ship to", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		name := o.CustomerName
		phone := o.Phone
		if a := o.ShippingAddress; a != nil {
			name = firstNonEmpty(a.Name, name)
			phone = firstNonEmpty(a.Phone, phone)
		}
		pdf.MultiCell(0, 6, tr(name), "", "L", false)
		pdf.MultiCell(0, 6, tr(o.ShippingAddress.OneLine()), "", "L", false)
		if phone != "" {
			pdf.MultiCell(0, 6, tr("Phone: "+phone), "", "L", false)
		}
		pdf.Ln(4)

		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		pdf.CellFormat(40, 7, "SKU", "1", 0, "L", true, 0, "")
		pdf.CellFormat(110, 7, "Item", "1", 0, "L", true, 0, "")
		pdf.CellFormat(40, 7, "Qty", "1", 1, "R", true, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, li := range o.LineItems {
			title := li.Title
			if li.VariantTitle != "" {
				title += " - " + li.VariantTitle
			}
			pdf.CellFormat(40, 7, tr(li.SKU), "1", 0, "L", false, 0, "")
			pdf.CellFormat(110, 7, tr(title), "1", 0, "L", false, 0, "")
			pdf.CellFormat(40, 7, fmt.Sprintf("%d", li.Quantity), "1", 1, "R", false, 0, "")
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(150, 7, "Total units", "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, fmt.Sprintf("%d", o.TotalQuantity()), "1", 1, "R", false, 0, "")
	}
	return output(pdf)
}

// PurchaseOrderParties names the counterparties printed on a PO
type PurchaseOrderParties struct {
	BusinessName string
	Supplier     *domain.Supplier
	Warehouse    *domain.Warehouse
}

// PurchaseOrderPDF renders a purchase order for sending to the supplier
func PurchaseOrderPDF(po *domain.PurchaseOrder, parties PurchaseOrderParties) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "PURCHASE ORDER", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, tr(parties.BusinessName), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.CellFormat(95, 6, "Number: "+po.Number, "", 0, "L", false, 0, "")
	pdf.CellFormat(95, 6, "Status: "+string(po.Status), "", 1, "R", false, 0, "")
	pdf.CellFormat(95, 6, "Date: "+po.CreatedAt.Format("02 Jan 2006"), "", 0, "L", false, 0, "")
	expected := "-"
	if po.ExpectedDate != nil {
		expected = po.ExpectedDate.Format("02 Jan 2006")
	}
	pdf.CellFormat(95, 6, "Expected: "+expected, "", 1, "R", false, 0, "")
	pdf.Ln(4)

	y := pdf.GetY()
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(95, 6, "Supplier", "", 2, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if s := parties.Supplier; s != nil {
		pdf.MultiCell(90, 5, tr(s.Name+"\n"+s.Address+"\n"+s.Phone+"  "+s.Email), "", "L", false)
	}
	pdf.SetXY(105, y)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(95, 6, "Deliver to", "", 2, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	if w := parties.Warehouse; w != nil {
		pdf.SetX(105)
		pdf.MultiCell(95, 5, tr(w.Name+" ("+w.Code+")\n"+w.Address), "", "L", false)
	}
	pdf.SetY(y + 30)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 230, 230)
	widths := []float64{35, 70, 20, 30, 35}
	for i, h := range []string{"SKU", "Product", "Qty", "Unit cost", "Amount"} {
		align := "L"
		if i >= 2 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, h, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, it := range po.Items {
		amount := it.UnitCost.Mul(decimal.NewFromInt(int64(it.OrderedQty)))
		pdf.CellFormat(widths[0], 7, tr(it.SKU), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, tr(it.ProductName), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 7, fmt.Sprintf("%d", it.OrderedQty), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, it.UnitCost.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 7, amount.StringFixed(2), "1", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(155, 7, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 7, po.TotalAmount.StringFixed(2), "1", 1, "R", false, 0, "")

	if po.Notes != "" {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr("Notes: "+po.Notes), "", "L", false)
	}
	return output(pdf)
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
