package domain

const (
	DeliveryPickup   = "pickup"
	DeliveryDelivery = "delivery"
)

const (
	OrderPending   = "pending"
	OrderConfirmed = "confirmed"
	OrderReady     = "ready"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
)

// ValidOrderStatus reports whether s is one of the known order states.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderReady, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// DeliveryMethodDisplay returns the label shown on bills.
func DeliveryMethodDisplay(method string) string {
	if method == DeliveryDelivery {
		return "Delivery"
	}
	return "Pickup"
}

type Order struct {
	ID             int64  `db:"id" json:"id"`
	CallID         int64  `db:"call_id" json:"call_id"`
	MedicineName   string `db:"medicine_name" json:"medicine_name"`
	Quantity       string `db:"quantity" json:"quantity"`
	DeliveryMethod string `db:"delivery_method" json:"delivery_method"`
	Status         string `db:"status" json:"status"`
	CreatedAt      string `db:"created_at" json:"created_at"`
	UpdatedAt      string `db:"updated_at" json:"updated_at"`
}
