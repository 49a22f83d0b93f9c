package receipt

import (
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"dolmen/pos/internal/domain"
)

// writePDF lays the receipt out on 80mm thermal paper. Page height grows with
// the number of lines.
func writePDF(r domain.Receipt, currency string, path string) (string, error) {
	height := 70 + 5*float64(len(r.Lines))
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 80, Ht: height},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 4)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 7, tr(strings.ToUpper(r.Shop.Name)), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	if r.Shop.Address != "" {
		pdf.CellFormat(contentW, 4, tr(r.Shop.Address), "", 1, "C", false, 0, "")
	}
	if r.Shop.Phone != "" {
		pdf.CellFormat(contentW, 4, tr("Tel: "+r.Shop.Phone), "", 1, "C", false, 0, "")
	}
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW, 5, "Receipt #"+r.ID, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, "Date: "+r.IssuedAt.Format(dateLayout), "", 1, "L", false, 0, "")
	pdf.Ln(1)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	nameW := contentW * 0.55
	qtyW := contentW * 0.13
	totalW := contentW * 0.32
	for _, line := range r.Lines {
		pdf.CellFormat(nameW, 5, tr(shortName(line.Name)), "", 0, "L", false, 0, "")
		pdf.CellFormat(qtyW, 5, fmt.Sprintf("x%d", line.Quantity), "", 0, "C", false, 0, "")
		pdf.CellFormat(totalW, 5, FormatMoney(line.LineTotal), "", 1, "R", false, 0, "")
	}

	pdf.Ln(1)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(nameW+qtyW, 6, "TOTAL:", "", 0, "L", false, 0, "")
	pdf.CellFormat(totalW, 6, tr(withCurrency(currency, r.GrandTotal)), "", 1, "R", false, 0, "")

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 7)
	if r.Shop.Terms != "" {
		pdf.CellFormat(contentW, 4, tr(r.Shop.Terms), "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(contentW, 4, "Thank you!", "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write pdf %s: %w", path, err)
	}
	return path, nil
}

// shortName fits an item name into the name column, counting characters
// rather than bytes so multi-byte names are never cut mid-rune.
func shortName(name string) string {
	runes := []rune(name)
	if len(runes) <= 26 {
		return name
	}
	return string(runes[:25]) + "."
}
