package repositories

import "fmt"

// StockErrorCode enumerates repository error causes for stock ledger operations.
type StockErrorCode string

const (
	// StockErrorUnknown represents an unspecified failure.
	StockErrorUnknown StockErrorCode = "stock_unknown"
	// StockErrorInsufficientStock indicates requested quantity exceeds availability.
	StockErrorInsufficientStock StockErrorCode = "stock_insufficient"
	// StockErrorProductNotFound indicates the product has no stock record.
	StockErrorProductNotFound StockErrorCode = "stock_product_not_found"
	// StockErrorInvalidDemand indicates the caller supplied a non-positive quantity.
	StockErrorInvalidDemand StockErrorCode = "stock_invalid_demand"
)

// StockError wraps stock-ledger failures with machine readable codes. For
// insufficiency it identifies the offending product and the quantity that was
// actually available at decision time.
type StockError struct {
	Op        string
	Code      StockErrorCode
	ProductID string
	Available int64
	Requested int64
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *StockError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *StockError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewStockError constructs a typed stock error.
func NewStockError(code StockErrorCode, message string, err error) *StockError {
	if message == "" {
		message = string(code)
	}
	return &StockError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewInsufficientStockError reports a shortfall for the given product.
func NewInsufficientStockError(productID string, available, requested int64) *StockError {
	return &StockError{
		Code:      StockErrorInsufficientStock,
		ProductID: productID,
		Available: available,
		Requested: requested,
		Message:   fmt.Sprintf("product %s has %d in stock, %d requested", productID, available, requested),
	}
}
