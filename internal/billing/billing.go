package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hamzak-27/curestock-app/domain"
)

var (
	// ErrNoOrders is reported when bill generation is requested for a call
	// without any orders.
	ErrNoOrders = errors.New("no orders found for this call")

	// ErrInvoiceExhausted is reported when a free invoice number could not
	// be found within the retry budget.
	ErrInvoiceExhausted = errors.New("unable to allocate a unique invoice number")
)

const maxInvoiceAttempts = 5

var (
	defaultUnitPrice = decimal.RequireFromString("50.00")
	gstPercentage    = decimal.RequireFromString("18.00")
	hundred          = decimal.NewFromInt(100)
)

// ParseQuantity extracts the numeric quantity from a free-text string like
// "2 tablets". Any string that does not start with a positive integer parses
// as (1, "unit").
func ParseQuantity(s string) (int64, string) {
	parts := strings.SplitN(strings.TrimSpace(s), " ", 2)
	value, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || value <= 0 {
		return 1, "unit"
	}
	unit := ""
	if len(parts) > 1 {
		unit = parts[1]
	}
	return value, unit
}

// InvoiceNumber returns an invoice number of the form INV-YYYYMMDD-XXXX.
// The suffix is random, so uniqueness is enforced by the bills table and
// collisions are retried by the generator.
func InvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%s-%04d", now.Format("20060102"), 1000+rand.IntN(9000))
}

// ResolveMedicine finds the catalog entry for a spoken medicine name using
// three tiers: case-insensitive exact match, substring match, then substring
// match on the first word of the name. The catalog must be ordered by id so
// that ties resolve to the lowest id. A nil result is a normal outcome.
func ResolveMedicine(name string, catalog []domain.Medicine) *domain.Medicine {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil
	}
	for i := range catalog {
		if strings.ToLower(catalog[i].Name) == needle {
			return &catalog[i]
		}
	}
	for i := range catalog {
		if strings.Contains(strings.ToLower(catalog[i].Name), needle) {
			return &catalog[i]
		}
	}
	if fields := strings.Fields(needle); len(fields) > 0 {
		for i := range catalog {
			if strings.Contains(strings.ToLower(catalog[i].Name), fields[0]) {
				return &catalog[i]
			}
		}
	}
	return nil
}

// BillContext is the structured invoice content handed to the renderer. The
// JSON shape is embedded verbatim in the text-generation prompt.
type BillContext struct {
	Customer       Customer `json:"customer"`
	Invoice        Invoice  `json:"invoice"`
	OrderItems     []Item   `json:"order_items"`
	Summary        Summary  `json:"summary"`
	DeliveryMethod string   `json:"delivery_method"`
}

type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Date  string `json:"date"`
}

type Invoice struct {
	Number string `json:"number"`
	Date   string `json:"date"`
}

type Item struct {
	Item     string  `json:"item"`
	Quantity string  `json:"quantity"`
	Price    float64 `json:"price"`
	Amount   float64 `json:"amount"`
}

type Summary struct {
	Subtotal      float64 `json:"subtotal"`
	GSTPercentage float64 `json:"gst_percentage"`
	GSTAmount     float64 `json:"gst_amount"`
	Total         float64 `json:"total"`
}

// Renderer turns a bill context into invoice text. Failures are recovered by
// falling back to the deterministic template.
type Renderer interface {
	Render(ctx context.Context, bc BillContext) (string, error)
}

// Generator produces at most one bill per call: it resolves ordered medicine
// names against the catalog, decrements stock where available, computes
// totals and persists the rendered invoice.
type Generator struct {
	db       *sqlx.DB
	renderer Renderer
	log      zerolog.Logger
	now      func() time.Time
}

func NewGenerator(db *sqlx.DB, renderer Renderer, log zerolog.Logger) *Generator {
	return &Generator{db: db, renderer: renderer, log: log, now: time.Now}
}

type stockDecrement struct {
	medicineID int64
	quantity   int64
}

// Generate creates the bill for a call, or returns the existing one. The
// boolean result reports whether a new bill was created.
func (g *Generator) Generate(ctx context.Context, call domain.Call, orders []domain.Order) (domain.Bill, bool, error) {
	switch bill, err := g.billByCall(ctx, call.ID); {
	case err == nil:
		return bill, false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return domain.Bill{}, false, fmt.Errorf("check existing bill: %w", err)
	}

	if len(orders) == 0 {
		return domain.Bill{}, false, ErrNoOrders
	}

	var catalog []domain.Medicine
	if err := g.db.SelectContext(ctx, &catalog,
		`SELECT id, name, manufacturer, price, quantity, is_discontinued, medicine_type, pack_size, composition1, composition2
         FROM medicines ORDER BY id`); err != nil {
		return domain.Bill{}, false, fmt.Errorf("load catalog: %w", err)
	}

	items := make([]Item, 0, len(orders))
	decrements := make([]stockDecrement, 0, len(orders))
	subtotal := decimal.Zero

	for _, order := range orders {
		qty, _ := ParseQuantity(order.Quantity)
		medicine := ResolveMedicine(order.MedicineName, catalog)

		price := defaultUnitPrice
		itemName := order.MedicineName
		if medicine != nil {
			price = medicine.Price
			itemName = medicine.Name
			if medicine.Quantity >= qty {
				decrements = append(decrements, stockDecrement{medicineID: medicine.ID, quantity: qty})
			}
		}

		amount := price.Mul(decimal.NewFromInt(qty))
		subtotal = subtotal.Add(amount)
		items = append(items, Item{
			Item:     itemName,
			Quantity: order.Quantity,
			Price:    price.InexactFloat64(),
			Amount:   amount.InexactFloat64(),
		})
	}

	gstAmount := subtotal.Mul(gstPercentage).Div(hundred).Round(2)
	total := subtotal.Add(gstAmount).Round(2)

	now := g.now()
	bc := BillContext{
		Customer: Customer{
			Name:  fmt.Sprintf("Customer (%s)", call.PhoneNumber),
			Phone: call.PhoneNumber,
			Date:  displayDate(call.CallTime, now),
		},
		Invoice: Invoice{
			Number: InvoiceNumber(now),
			Date:   now.Format("January 02, 2006"),
		},
		OrderItems: items,
		Summary: Summary{
			Subtotal:      subtotal.InexactFloat64(),
			GSTPercentage: gstPercentage.InexactFloat64(),
			GSTAmount:     gstAmount.InexactFloat64(),
			Total:         total.InexactFloat64(),
		},
		DeliveryMethod: domain.DeliveryMethodDisplay(orders[0].DeliveryMethod),
	}

	content := g.renderContent(ctx, bc)

	for attempt := 0; attempt < maxInvoiceAttempts; attempt++ {
		bill, err := g.persist(ctx, call.ID, bc.Invoice.Number, total, decrements, content)
		switch {
		case err == nil:
			return bill, true, nil
		case isUniqueViolation(err, "bills.call_id"):
			// Another request created the bill first.
			existing, lookupErr := g.billByCall(ctx, call.ID)
			if lookupErr != nil {
				return domain.Bill{}, false, lookupErr
			}
			return existing, false, nil
		case isUniqueViolation(err, "bills.invoice_number"):
			bc.Invoice.Number = InvoiceNumber(g.now())
			content = RenderTemplate(bc)
		default:
			return domain.Bill{}, false, err
		}
	}
	return domain.Bill{}, false, ErrInvoiceExhausted
}

// renderContent attempts the external renderer and falls back to the
// deterministic template on any failure.
func (g *Generator) renderContent(ctx context.Context, bc BillContext) string {
	if g.renderer != nil {
		content, err := g.renderer.Render(ctx, bc)
		if err == nil {
			return content
		}
		g.log.Warn().Err(err).Str("invoice", bc.Invoice.Number).Msg("invoice rendering failed, using template")
	}
	return RenderTemplate(bc)
}

// persist applies the stock decrements and inserts the bill row in a single
// transaction. The quantity guard keeps stock from going negative even if
// the catalog changed since the snapshot was taken.
func (g *Generator) persist(ctx context.Context, callID int64, invoiceNumber string, total decimal.Decimal, decrements []stockDecrement, content string) (domain.Bill, error) {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Bill{}, fmt.Errorf("begin bill transaction: %w", err)
	}
	defer tx.Rollback()

	for _, d := range decrements {
		if _, err := tx.ExecContext(ctx,
			`UPDATE medicines SET quantity = quantity - ? WHERE id = ? AND quantity >= ?`,
			d.quantity, d.medicineID, d.quantity); err != nil {
			return domain.Bill{}, fmt.Errorf("decrement stock for medicine %d: %w", d.medicineID, err)
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO bills (call_id, invoice_number, total_amount, gst_percentage, content) VALUES (?, ?, ?, ?, ?)`,
		callID, invoiceNumber, total.StringFixed(2), gstPercentage.StringFixed(2), content)
	if err != nil {
		return domain.Bill{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Bill{}, fmt.Errorf("read bill id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Bill{}, fmt.Errorf("commit bill: %w", err)
	}

	var bill domain.Bill
	if err := g.db.GetContext(ctx, &bill,
		`SELECT id, call_id, invoice_number, total_amount, gst_percentage, content, created_at FROM bills WHERE id = ?`, id); err != nil {
		return domain.Bill{}, fmt.Errorf("reload bill: %w", err)
	}
	return bill, nil
}

func (g *Generator) billByCall(ctx context.Context, callID int64) (domain.Bill, error) {
	var bill domain.Bill
	err := g.db.GetContext(ctx, &bill,
		`SELECT id, call_id, invoice_number, total_amount, gst_percentage, content, created_at FROM bills WHERE call_id = ?`, callID)
	return bill, err
}

func displayDate(rfc3339 string, fallback time.Time) string {
	t, err := time.Parse(time.RFC3339, rfc3339)
	if err != nil {
		t = fallback
	}
	return t.Format("January 02, 2006")
}

func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") && strings.Contains(err.Error(), column)
}
