package receipt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"dolmen/pos/internal/domain"
	"dolmen/pos/internal/xid"
)

const (
	separator  = "------------------------------"
	dateLayout = "2006-01-02 15:04"
)

// Writer persists one plain-text file per receipt under dir, and optionally a
// PDF companion for thermal printers.
type Writer struct {
	dir      string
	currency string
	pdf      bool
}

func NewWriter(dir string, currency string, withPDF bool) *Writer {
	if strings.TrimSpace(dir) == "" {
		dir = "receipts"
	}
	return &Writer{dir: dir, currency: currency, pdf: withPDF}
}

func (w *Writer) Dir() string {
	return w.dir
}

// Write renders r to <dir>/<id>.txt, replacing any previous file with the same
// id. It returns the path of the text file.
func (w *Writer) Write(r domain.Receipt) (string, error) {
	if !xid.ValidReceipt(r.ID) {
		return "", fmt.Errorf("receipt: invalid id %q", r.ID)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("receipt: create dir: %w", err)
	}

	path := filepath.Join(w.dir, r.ID+".txt")
	if err := writeFileAtomic(path, []byte(Render(r, w.currency))); err != nil {
		return "", fmt.Errorf("receipt: write %s: %w", path, err)
	}

	if w.pdf {
		if _, err := writePDF(r, w.currency, filepath.Join(w.dir, r.ID+".pdf")); err != nil {
			return path, fmt.Errorf("receipt: %w", err)
		}
	}
	return path, nil
}

// Render returns the fixed plain-text layout of a receipt.
func Render(r domain.Receipt, currency string) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(r.Shop.Name) + "\n")
	if r.Shop.Address != "" {
		b.WriteString(r.Shop.Address + "\n")
	}
	if r.Shop.Phone != "" {
		b.WriteString("Tel: " + r.Shop.Phone + "\n")
	}
	fmt.Fprintf(&b, "Receipt #%s\n", r.ID)
	fmt.Fprintf(&b, "Date: %s\n", r.IssuedAt.Format(dateLayout))
	b.WriteString(separator + "\n")
	for _, line := range r.Lines {
		fmt.Fprintf(&b, "%s x%d = %s\n", line.Name, line.Quantity, FormatMoney(line.LineTotal))
	}
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "TOTAL: %s\n", withCurrency(currency, r.GrandTotal))
	if r.Shop.Terms != "" {
		b.WriteString(r.Shop.Terms + "\n")
	}
	b.WriteString("Thank you!\n")
	return b.String()
}

// FormatMoney renders an amount with two decimals and thousands separators.
func FormatMoney(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if amount.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

func withCurrency(currency string, amount decimal.Decimal) string {
	if currency == "" {
		return FormatMoney(amount)
	}
	return currency + " " + FormatMoney(amount)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".receipt-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
