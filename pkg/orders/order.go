package orders

import (
	"time"

	"github.com/google/uuid"
)

// Status is the order fulfillment lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusPaid       Status = "paid"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

// Order is a one-time purchase of a catalog item.
type Order struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	VendorID  uuid.UUID
	ProductID uuid.UUID
	Quantity  int64

	TotalCents int64
	Currency   string
	Status     Status

	// PaymentIntentID is the provider's payment reference and the order's
	// idempotency key: one order per completed checkout, ever.
	PaymentIntentID string

	// StockApplied records that the stock decrement for this order already
	// happened, so webhook retries never apply it twice.
	StockApplied bool

	ShippingAddressID *uuid.UUID

	// AuditNote flags access-policy anomalies detected at creation time for
	// manual review. Empty for clean orders.
	AuditNote string

	CreatedAt time.Time
	UpdatedAt time.Time
}
