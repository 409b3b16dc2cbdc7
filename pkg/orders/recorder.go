package orders

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fanward/fanward/pkg/catalog"
	"github.com/fanward/fanward/pkg/ledger"
	"github.com/fanward/fanward/pkg/logger"
)

// ProductCatalog is the slice of the catalog the recorder needs.
type ProductCatalog interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (*catalog.Product, error)
	DecrementStock(ctx context.Context, productID uuid.UUID, quantity int64) error
}

// AccessReader resolves the buyer's current subscription standing with the
// vendor at fulfillment time.
type AccessReader interface {
	CurrentAccess(ctx context.Context, accountID, vendorID uuid.UUID) (*ledger.Entry, error)
}

// CompletedCheckout carries the fields of a completed payment-mode checkout
// the recorder acts on.
type CompletedCheckout struct {
	AccountID uuid.UUID
	VendorID  uuid.UUID
	ProductID uuid.UUID
	Quantity  int64

	PaymentIntentID string
	AmountTotal     int64
	Currency        string
}

func (c CompletedCheckout) Validate() error {
	if c.PaymentIntentID == "" {
		return ErrMissingPaymentRef
	}
	if c.AccountID == uuid.Nil {
		return ErrMissingAccountID
	}
	if c.ProductID == uuid.Nil {
		return ErrMissingProductID
	}
	return nil
}

// Recorder turns completed payment-mode checkouts into orders.
type Recorder struct {
	store    Store
	products ProductCatalog
	access   AccessReader
	log      *slog.Logger

	now func() time.Time
}

func NewRecorder(store Store, products ProductCatalog, access AccessReader, log *slog.Logger) *Recorder {
	if store == nil {
		panic("orders: Store is required")
	}
	if products == nil {
		panic("orders: ProductCatalog is required")
	}
	if access == nil {
		panic("orders: AccessReader is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		store:    store,
		products: products,
		access:   access,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RecordCheckout records the order for a completed checkout and applies the
// stock decrement exactly once. Safe to call any number of times with the
// same payment-intent reference: the first call creates the order, later
// calls finish any step a crash left undone and otherwise return the
// existing order unchanged.
func (r *Recorder) RecordCheckout(ctx context.Context, checkout CompletedCheckout) (*Order, error) {
	if err := checkout.Validate(); err != nil {
		return nil, err
	}
	if checkout.Quantity < 1 {
		checkout.Quantity = 1
	}

	existing, err := r.store.FindByPaymentIntent(ctx, checkout.PaymentIntentID)
	switch {
	case err == nil:
		if existing.StockApplied {
			return existing, nil
		}
		return r.applyStock(ctx, existing)
	case !errors.Is(err, ErrOrderNotFound):
		return nil, err
	}

	product, err := r.products.GetProduct(ctx, checkout.ProductID)
	if err != nil && !errors.Is(err, catalog.ErrProductNotFound) {
		return nil, err
	}

	order := &Order{
		AccountID:       checkout.AccountID,
		VendorID:        checkout.VendorID,
		ProductID:       checkout.ProductID,
		Quantity:        checkout.Quantity,
		TotalCents:      checkout.AmountTotal,
		Currency:        checkout.Currency,
		Status:          StatusPaid,
		PaymentIntentID: checkout.PaymentIntentID,
		AuditNote:       r.verify(ctx, checkout, product),
	}
	if product == nil || !product.StockLimited {
		// Nothing to decrement, the stock step is already settled.
		order.StockApplied = true
	}

	order, created, err := r.store.Create(ctx, order)
	if err != nil {
		return nil, err
	}
	if !created && order.StockApplied {
		return order, nil
	}
	return r.applyStock(ctx, order)
}

// verify re-checks the buyer's access against the vendor's current ledger
// state. The payment is already captured, so a failure produces an audit
// note rather than an error.
func (r *Recorder) verify(ctx context.Context, checkout CompletedCheckout, product *catalog.Product) string {
	if product == nil {
		r.log.WarnContext(ctx, "product missing at fulfillment",
			slog.String("product_id", checkout.ProductID.String()),
			logger.PaymentIntentID(checkout.PaymentIntentID))
		return "product not found at fulfillment; flagged for manual review"
	}
	if !product.Active {
		return "product inactive at fulfillment; flagged for manual review"
	}

	entry, err := r.access.CurrentAccess(ctx, checkout.AccountID, checkout.VendorID)
	switch {
	case errors.Is(err, ledger.ErrEntryNotFound):
		return "no subscription found at fulfillment; flagged for manual review"
	case err != nil:
		r.log.ErrorContext(ctx, "access lookup failed at fulfillment",
			logger.Error(err),
			logger.PaymentIntentID(checkout.PaymentIntentID))
		return "access verification unavailable at fulfillment; flagged for manual review"
	case !entry.HasAccess(r.now()):
		return "subscription lapsed before fulfillment; flagged for manual review"
	case !product.TierAllowed(entry.TierID):
		return "tier not eligible for product at fulfillment; flagged for manual review"
	}
	return ""
}

// applyStock runs the pending stock decrement for an order and marks it
// settled. Insufficient stock is an anomaly, not a retryable failure: the
// order stays recorded with an audit note.
func (r *Recorder) applyStock(ctx context.Context, order *Order) (*Order, error) {
	err := r.products.DecrementStock(ctx, order.ProductID, order.Quantity)
	switch {
	case errors.Is(err, catalog.ErrInsufficientStock):
		r.log.ErrorContext(ctx, "stock exhausted at fulfillment",
			slog.String("order_id", order.ID.String()),
			slog.String("product_id", order.ProductID.String()))
		if err := r.store.AppendAuditNote(ctx, order.ID, "stock unavailable at fulfillment; flagged for manual review"); err != nil {
			return nil, err
		}
	case errors.Is(err, catalog.ErrProductNotFound):
		// Product vanished after the order was created; nothing to move.
	case err != nil:
		return nil, err
	}

	if err := r.store.MarkStockApplied(ctx, order.ID); err != nil {
		return nil, err
	}
	order.StockApplied = true
	return order, nil
}
