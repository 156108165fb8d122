// Package receipt renders booking receipts as PDF documents and stores them
// in object storage.
package receipt

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"sessionbook/backend/internal/domain"
)

type Renderer struct {
	Title string
	loc   *time.Location
	style domain.TimeStyle
}

func NewRenderer(title string, loc *time.Location, style domain.TimeStyle) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	if title == "" {
		title = "Session Receipt"
	}
	return &Renderer{Title: title, loc: loc, style: style}
}

// Render produces a single-page A4 receipt for b.
func (r *Renderer) Render(b domain.Booking, p domain.Parties, issuedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, r.Title, "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 7, "Issued "+issuedAt.In(r.loc).Format("02 Jan 2006 15:04 MST"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	detail(pdf, "Receipt", b.ID.String(), true)
	detail(pdf, "Client", p.Client.DisplayName(), false)
	detail(pdf, "Psychologist", p.Provider.DisplayName(), false)
	detail(pdf, "Date", b.ScheduledDate.String(), false)
	detail(pdf, "Time", b.ScheduledMinute.Format(r.style), false)
	detail(pdf, "Duration", fmt.Sprintf("%d minutes", int(domain.SessionDuration.Minutes())), false)
	if b.ClientPackageID != nil {
		detail(pdf, "Package", b.ClientPackageID.String(), false)
	}
	if b.PaymentID != nil {
		detail(pdf, "Payment", *b.PaymentID, false)
	}
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 10, "Amount: "+b.Price.StringFixed(2), "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.MultiCell(0, 5, "This is a computer generated receipt.", "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

func detail(pdf *gofpdf.Fpdf, label, value string, header bool) {
	if header {
		pdf.SetFont("Arial", "B", 12)
	} else {
		pdf.SetFont("Arial", "", 10)
	}
	pdf.CellFormat(45, 10, label, "1", 0, "", false, 0, "")
	pdf.CellFormat(0, 10, value, "1", 1, "", false, 0, "")
}
