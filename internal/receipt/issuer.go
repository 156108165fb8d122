package receipt

import (
	"context"
	"fmt"
	"time"

	"sessionbook/backend/internal/domain"
)

// Uploader stores a rendered document and returns where it can be found.
type Uploader interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type Issuer struct {
	renderer *Renderer
	uploader Uploader
	now      func() time.Time
}

func NewIssuer(r *Renderer, u Uploader, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{renderer: r, uploader: u, now: now}
}

// Issue renders the receipt for b and uploads it under receipts/<id>.pdf.
// Issuing twice for the same booking overwrites the same object.
func (i *Issuer) Issue(ctx context.Context, b domain.Booking, p domain.Parties) (string, error) {
	doc, err := i.renderer.Render(b, p, i.now())
	if err != nil {
		return "", err
	}
	loc, err := i.uploader.Put(ctx, ObjectKey(b), doc, "application/pdf")
	if err != nil {
		return "", fmt.Errorf("upload receipt %s: %w", b.ID, err)
	}
	return loc, nil
}

func ObjectKey(b domain.Booking) string {
	return "receipts/" + b.ID.String() + ".pdf"
}
