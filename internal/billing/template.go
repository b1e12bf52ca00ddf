package billing

import (
	"fmt"
	"strings"
)

// RenderTemplate renders the fixed-layout fallback invoice. Given the same
// context it always produces the same bytes, which is what the tests and the
// offline path rely on.
func RenderTemplate(bc BillContext) string {
	rule := strings.Repeat("=", 60)
	sep := strings.Repeat("-", 60)

	lines := []string{
		rule,
		"                CURESTOCK PHARMACY                ",
		"           Your Health is Our Priority            ",
		rule,
		"",
		fmt.Sprintf("INVOICE #%s", bc.Invoice.Number),
		fmt.Sprintf("Date: %s", bc.Invoice.Date),
		"",
		"CUSTOMER INFORMATION",
		fmt.Sprintf("Name: %s", bc.Customer.Name),
		fmt.Sprintf("Phone: %s", bc.Customer.Phone),
		"",
		"ITEMS",
		sep,
		fmt.Sprintf("%-30s %-10s %-10s %-10s", "Item", "Quantity", "Price", "Amount"),
		sep,
	}

	for _, item := range bc.OrderItems {
		lines = append(lines, fmt.Sprintf("%-30s %-10s %-10.2f %-10.2f", item.Item, item.Quantity, item.Price, item.Amount))
	}

	lines = append(lines,
		sep,
		fmt.Sprintf("%-50s %-10.2f", "Subtotal:", bc.Summary.Subtotal),
		fmt.Sprintf("%-50s %-10.2f", fmt.Sprintf("GST (%g%%):", bc.Summary.GSTPercentage), bc.Summary.GSTAmount),
		fmt.Sprintf("%-50s %-10.2f", "TOTAL:", bc.Summary.Total),
		"",
		fmt.Sprintf("Delivery Method: %s", bc.DeliveryMethod),
		"",
		"PAYMENT",
		"Payment due within 30 days of invoice",
		"",
		"Thank you for choosing Curestock Pharmacy!",
		"For any queries, please contact us at support@curestock.com",
		rule,
	)

	return strings.Join(lines, "\n")
}
