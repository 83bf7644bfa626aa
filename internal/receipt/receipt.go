// Package receipt renders a guest's bill as a printable HTML page.
package receipt

import (
	"fmt"
	"html/template"
	"io"

	"github.com/shopspring/decimal"

	"loungebackend/internal/billing"
	"loungebackend/internal/ledger"
)

const (
	notAvailable    = "N/A"
	noBarItems      = "None"
	defaultCurrency = "L.E"
)

// Receipt carries exactly the figures the engine computed. Amounts are kept
// unrounded and only rounded when rendered.
type Receipt struct {
	GuestNumber   int
	Room          string
	RoomStart     string
	RoomEnd       string
	RoomCost      decimal.Decimal
	BilliardStart string
	BilliardEnd   string
	BilliardCost  decimal.Decimal
	BarItems      string
	BarCost       decimal.Decimal
	Total         decimal.Decimal
	Currency      string
}

// FromQuote builds a receipt for a guest who has not settled yet.
func FromQuote(q billing.Quote, currency string) Receipt {
	return Receipt{
		GuestNumber:   q.GuestNumber,
		Room:          orDefault(q.Room, notAvailable),
		RoomStart:     orDefault(q.RoomTimer.Start, notAvailable),
		RoomEnd:       orDefault(q.RoomTimer.End, notAvailable),
		RoomCost:      q.RoomCost,
		BilliardStart: orDefault(q.Billiard.Start, notAvailable),
		BilliardEnd:   orDefault(q.Billiard.End, notAvailable),
		BilliardCost:  q.BilliardCost,
		BarItems:      orDefault(q.TabSummary(), noBarItems),
		BarCost:       q.BarCost,
		Total:         q.Total,
		Currency:      orDefault(currency, defaultCurrency),
	}
}

// FromEntry builds a receipt for a settled visit.
func FromEntry(e ledger.Entry, currency string) Receipt {
	return Receipt{
		GuestNumber:   e.GuestNumber,
		Room:          orDefault(e.Room.Name, notAvailable),
		RoomStart:     orDefault(e.Room.Start, notAvailable),
		RoomEnd:       orDefault(e.Room.End, notAvailable),
		RoomCost:      e.RoomCost,
		BilliardStart: orDefault(e.Billiard.Start, notAvailable),
		BilliardEnd:   orDefault(e.Billiard.End, notAvailable),
		BilliardCost:  e.BilliardCost,
		BarItems:      orDefault(e.BarItems, noBarItems),
		BarCost:       e.BarCost,
		Total:         e.Total,
		Currency:      orDefault(currency, defaultCurrency),
	}
}

var page = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money": func(amount decimal.Decimal, currency string) string {
		return fmt.Sprintf("%s %s", amount.StringFixed(2), currency)
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Receipt - Guest #{{.GuestNumber}}</title>
    <style>
        body { font-family: Arial, sans-serif; padding: 20px; }
        h1 { text-align: center; }
        p { margin: 5px 0; }
        .total { font-weight: bold; margin-top: 12px; }
        @media print { button { display: none; } }
    </style>
</head>
<body>
    <h1>Receipt</h1>
    <p><strong>Guest #:</strong> {{.GuestNumber}}</p>
    <p><strong>Room Selected:</strong> {{.Room}}</p>
    <p><strong>Room Start Time:</strong> {{.RoomStart}}</p>
    <p><strong>Room End Time:</strong> {{.RoomEnd}}</p>
    <p><strong>Room Cost:</strong> {{money .RoomCost .Currency}}</p>
    <p><strong>Billiardo Start Time:</strong> {{.BilliardStart}}</p>
    <p><strong>Billiardo End Time:</strong> {{.BilliardEnd}}</p>
    <p><strong>Billiardo Cost:</strong> {{money .BilliardCost .Currency}}</p>
    <p><strong>Bar Items:</strong> {{.BarItems}}</p>
    <p><strong>Bar Cost:</strong> {{money .BarCost .Currency}}</p>
    <p class="total"><strong>Total:</strong> {{money .Total .Currency}}</p>
    <button onclick="window.print()">Print</button>
</body>
</html>
`))

// Render writes r as an HTML document.
func Render(w io.Writer, r Receipt) error {
	if err := page.Execute(w, r); err != nil {
		return fmt.Errorf("failed to render receipt: %w", err)
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
