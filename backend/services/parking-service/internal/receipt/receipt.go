// Package receipt renders entry and exit slips. Digital receipts are a QR code PNG of
// the slip text; manual receipts are printed as-is.
package receipt

import (
	"fmt"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"parkledger/backend/services/parking-service/internal/models"
)

// DisplayLayout is the date layout printed on slips and messages.
const DisplayLayout = "2006-01-02 15:04:05"

// QRSize is the edge length in pixels of digital receipt images.
const QRSize = 256

// DefaultCurrency is prefixed to every amount unless configured otherwise.
const DefaultCurrency = "₹"

type Action string

const (
	ActionEntry Action = "Entry"
	ActionExit  Action = "Exit"
)

type Format string

const (
	FormatDigital Format = "digital"
	FormatManual  Format = "manual"
)

// ParseFormat accepts "digital" or "manual"; empty means digital.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatDigital:
		return FormatDigital, nil
	case FormatManual:
		return FormatManual, nil
	default:
		return "", fmt.Errorf("receipt: unknown format %q", raw)
	}
}

// Receipt is the event handed to receipt renderers.
type Receipt struct {
	Action    Action `json:"action"`
	SessionID int64  `json:"session_id"`
	Plate     string `json:"plate"`
	EntryDate string `json:"entry_date"`
	ExitDate  string `json:"exit_date,omitempty"`
	AmountDue *int64 `json:"amount_due,omitempty"`
	Currency  string `json:"currency"`
}

// Document is a rendered receipt. Body is the slip text; Image holds the PNG for
// digital receipts.
type Document struct {
	Format      Format `json:"format"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
	Image       []byte `json:"image,omitempty"`
}

// Issuer formats receipts and gate messages with a fixed currency and time zone.
type Issuer struct {
	currency string
	loc      *time.Location
}

// NewIssuer returns an issuer. Blank currency falls back to DefaultCurrency and a
// nil location to time.Local.
func NewIssuer(currency string, loc *time.Location) *Issuer {
	if strings.TrimSpace(currency) == "" {
		currency = DefaultCurrency
	}
	if loc == nil {
		loc = time.Local
	}
	return &Issuer{currency: currency, loc: loc}
}

// Amount renders an integer amount with the currency symbol.
func (i *Issuer) Amount(amount int64) string {
	return fmt.Sprintf("%s%d", i.currency, amount)
}

// Date renders t in the issuer's location.
func (i *Issuer) Date(t time.Time) string {
	return t.In(i.loc).Format(DisplayLayout)
}

// ForSession builds the receipt for a stored session: an exit receipt once it is
// closed, an entry receipt otherwise.
func (i *Issuer) ForSession(s models.ParkingSession) Receipt {
	r := Receipt{
		Action:    ActionEntry,
		SessionID: s.ID,
		Plate:     s.LicensePlate,
		EntryDate: i.Date(s.EntryTime),
		Currency:  i.currency,
	}
	if s.ExitTime != nil && s.AmountDue != nil {
		amount := *s.AmountDue
		r.Action = ActionExit
		r.ExitDate = i.Date(*s.ExitTime)
		r.AmountDue = &amount
	}
	return r
}

// Render produces the document for the requested format.
func (i *Issuer) Render(r Receipt, format Format) (Document, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Action: %s\nLicense Plate: %s\nEntry Date: %s", r.Action, r.Plate, r.EntryDate)
	if r.ExitDate != "" {
		var amount int64
		if r.AmountDue != nil {
			amount = *r.AmountDue
		}
		fmt.Fprintf(&b, "\nExit Date: %s\nAmount Due: %s", r.ExitDate, i.Amount(amount))
	}

	switch format {
	case FormatDigital:
		png, err := qrcode.Encode(b.String(), qrcode.Medium, QRSize)
		if err != nil {
			return Document{}, fmt.Errorf("receipt: encode qr: %w", err)
		}
		return Document{Format: format, ContentType: "image/png", Body: b.String(), Image: png}, nil
	case FormatManual:
		return Document{Format: format, ContentType: "text/plain; charset=utf-8", Body: b.String()}, nil
	default:
		return Document{}, fmt.Errorf("receipt: unknown format %q", format)
	}
}

// EntryMessage is shown when a vehicle is admitted.
func (i *Issuer) EntryMessage(plate string, entry time.Time, minimumCharge int64) string {
	return fmt.Sprintf("Vehicle entered. License Plate: %s\nEntry Date: %s\nEstimated Minimum Charge: %s",
		plate, i.Date(entry), i.Amount(minimumCharge))
}

// ExitMessage is shown when a vehicle leaves. Duration is printed in whole hours as
// read off the printed dates.
func (i *Issuer) ExitMessage(plate string, entry, exit time.Time, amountDue int64) string {
	hours := int64(i.wall(exit).Sub(i.wall(entry)) / time.Hour)
	if hours < 0 {
		hours = 0
	}
	return fmt.Sprintf("Vehicle exited. License Plate: %s\nEntry Date: %s\nExit Date: %s\nDuration: %d hours\nAmount Due: %s",
		plate, i.Date(entry), i.Date(exit), hours, i.Amount(amountDue))
}

func (i *Issuer) wall(t time.Time) time.Time {
	t = t.In(i.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// DurationMessage is the occupancy line on display boards.
func DurationMessage(totalHours int64) string {
	return fmt.Sprintf("Duration: %d hours", totalHours)
}
