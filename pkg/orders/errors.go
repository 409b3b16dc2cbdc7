package orders

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrMissingPaymentRef = errors.New("payment intent reference is required")
	ErrMissingAccountID  = errors.New("account ID is required")
	ErrMissingProductID  = errors.New("product ID is required")
)
