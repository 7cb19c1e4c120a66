package shopping

import "time"

const (
	FailureReasonInsufficientStock = "insufficient_stock"
	FailureReasonNotFound          = "not_found"
	FailureReasonPersistenceError  = "persist_error"
)

// SettledLine is a cart line after its stock was decremented and saved.
type SettledLine struct {
	Product   string
	Quantity  int
	Remaining int
}

// PurchaseCompletedEvent is emitted when every line of a cart has been settled.
type PurchaseCompletedEvent struct {
	CustomerID int64
	Lines      []SettledLine
	OccurredAt time.Time
}

func (PurchaseCompletedEvent) EventName() string { return "shopping.purchase_completed" }

func NewPurchaseCompletedEvent(customerID int64, lines []SettledLine) PurchaseCompletedEvent {
	return PurchaseCompletedEvent{
		CustomerID: customerID,
		Lines:      append([]SettledLine(nil), lines...),
		OccurredAt: time.Now().UTC(),
	}
}

// PurchaseFailedEvent is emitted when a buy stops on a line. Settled lists the
// lines that were already saved before the failure.
type PurchaseFailedEvent struct {
	CustomerID int64
	Product    string
	Reason     string
	Settled    []SettledLine
	OccurredAt time.Time
}

func (PurchaseFailedEvent) EventName() string { return "shopping.purchase_failed" }

func NewPurchaseFailedEvent(customerID int64, product, reason string, settled []SettledLine) PurchaseFailedEvent {
	return PurchaseFailedEvent{
		CustomerID: customerID,
		Product:    product,
		Reason:     reason,
		Settled:    append([]SettledLine(nil), settled...),
		OccurredAt: time.Now().UTC(),
	}
}
