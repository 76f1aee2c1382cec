package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Supplier struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	Name       string
	Phone      string
	Email      string
	Address    string
	CreatedAt  time.Time
}

type Warehouse struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	Name       string
	Code       string
	Address    string
	CreatedAt  time.Time
}

// POStatus is the purchase order lifecycle status
type POStatus string

const (
	POStatusDraft             POStatus = "draft"
	POStatusConfirmed         POStatus = "confirmed"
	POStatusPartiallyReceived POStatus = "partially_received"
	POStatusFullyReceived     POStatus = "fully_received"
	POStatusClosed            POStatus = "closed"
	POStatusCancelled         POStatus = "cancelled"
)

var poTransitions = map[POStatus][]POStatus{
	POStatusDraft:             {POStatusConfirmed, POStatusCancelled},
	POStatusConfirmed:         {POStatusPartiallyReceived, POStatusFullyReceived, POStatusCancelled},
	POStatusPartiallyReceived: {POStatusPartiallyReceived, POStatusFullyReceived, POStatusClosed},
	POStatusFullyReceived:     {POStatusClosed},
	POStatusClosed:            nil,
	POStatusCancelled:         nil,
}

// IsValid checks if the status is known
func (s POStatus) IsValid() bool {
	_, ok := poTransitions[s]
	return ok
}

// CanTransitionTo checks if a status transition is valid
func (s POStatus) CanTransitionTo(next POStatus) bool {
	for _, allowed := range poTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports closed and cancelled
func (s POStatus) IsTerminal() bool {
	return s == POStatusClosed || s == POStatusCancelled
}

// IsManual reports whether a user may request this status directly.
// Receipt statuses are only ever derived from goods receipts.
func (s POStatus) IsManual() bool {
	switch s {
	case POStatusConfirmed, POStatusCancelled, POStatusClosed:
		return true
	}
	return false
}

// AcceptsReceipts reports whether GRNs may be booked against the PO
func (s POStatus) AcceptsReceipts() bool {
	return s == POStatusConfirmed || s == POStatusPartiallyReceived
}

// POItemStatus is derived from item quantities
type POItemStatus string

const (
	POItemPending           POItemStatus = "pending"
	POItemPartiallyReceived POItemStatus = "partially_received"
	POItemFullyReceived     POItemStatus = "fully_received"
)

type PurchaseOrder struct {
	ID           uuid.UUID
	BusinessID   uuid.UUID
	Number       string
	SupplierID   uuid.UUID
	WarehouseID  uuid.UUID
	Status       POStatus
	ExpectedDate *time.Time
	Notes        string
	Items        []PurchaseOrderItem
	TotalAmount  decimal.Decimal
	CreatedBy    string
	StatusLogs   []POStatusLog
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type PurchaseOrderItem struct {
	SKU         string          `json:"sku"`
	ProductName string          `json:"productName"`
	OrderedQty  int             `json:"orderedQty"`
	ReceivedQty int             `json:"receivedQty"`
	RejectedQty int             `json:"rejectedQty"`
	UnitCost    decimal.Decimal `json:"unitCost"`
	Status      POItemStatus    `json:"status"`
}

type POStatusLog struct {
	Status    POStatus  `json:"status"`
	Remarks   string    `json:"remarks,omitempty"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Outstanding is the quantity still expected from the supplier
func (i PurchaseOrderItem) Outstanding() int {
	if rest := i.OrderedQty - i.ReceivedQty; rest > 0 {
		return rest
	}
	return 0
}

// DeriveStatus computes the item status from its quantities
func (i PurchaseOrderItem) DeriveStatus() POItemStatus {
	switch {
	case i.OrderedQty > 0 && i.ReceivedQty >= i.OrderedQty:
		return POItemFullyReceived
	case i.ReceivedQty+i.RejectedQty > 0:
		return POItemPartiallyReceived
	default:
		return POItemPending
	}
}

// Item returns the line for sku
func (po *PurchaseOrder) Item(sku string) (*PurchaseOrderItem, bool) {
	for i := range po.Items {
		if po.Items[i].SKU == sku {
			return &po.Items[i], true
		}
	}
	return nil, false
}

// RecalculateTotal sums orderedQty * unitCost
func (po *PurchaseOrder) RecalculateTotal() {
	total := decimal.Zero
	for _, it := range po.Items {
		total = total.Add(it.UnitCost.Mul(decimal.NewFromInt(int64(it.OrderedQty))))
	}
	po.TotalAmount = total
}

// DeriveReceiptStatus refreshes item statuses and returns the PO status implied by them.
// Only meaningful while the PO accepts receipts.
func (po *PurchaseOrder) DeriveReceiptStatus() POStatus {
	allReceived := len(po.Items) > 0
	anyActivity := false
	for i := range po.Items {
		po.Items[i].Status = po.Items[i].DeriveStatus()
		if po.Items[i].Status != POItemFullyReceived {
			allReceived = false
		}
		if po.Items[i].Status != POItemPending {
			anyActivity = true
		}
	}
	switch {
	case allReceived:
		return POStatusFullyReceived
	case anyActivity:
		return POStatusPartiallyReceived
	default:
		return po.Status
	}
}

// AppendLog records a status change
func (po *PurchaseOrder) AppendLog(status POStatus, remarks, by string, at time.Time) {
	po.StatusLogs = append(po.StatusLogs, POStatusLog{Status: status, Remarks: remarks, CreatedBy: by, CreatedAt: at})
}

// GRN records goods physically received against a purchase order
type GRN struct {
	ID              uuid.UUID
	BusinessID      uuid.UUID
	Number          string
	PurchaseOrderID uuid.UUID
	PONumber        string
	WarehouseID     uuid.UUID
	ReceivedBy      string
	ReceivedAt      time.Time
	Notes           string
	Items           []GRNItem
	CreatedAt       time.Time
}

type GRNItem struct {
	SKU         string `json:"sku"`
	ReceivedQty int    `json:"receivedQty"`
	AcceptedQty int    `json:"acceptedQty"`
	RejectedQty int    `json:"rejectedQty"`
}

// TotalAccepted sums accepted units across items
func (g *GRN) TotalAccepted() int {
	n := 0
	for _, it := range g.Items {
		n += it.AcceptedQty
	}
	return n
}

// UPC is a single stocked unit created from an accepted GRN quantity
type UPC struct {
	ID              uuid.UUID
	BusinessID      uuid.UUID
	SKU             string
	WarehouseID     uuid.UUID
	GRNID           *uuid.UUID
	PurchaseOrderID *uuid.UUID
	PutAway         PutAwayState
	Location        string
	Shop            string
	OrderID         *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// InventorySummary counts units of a SKU by put-away state
type InventorySummary struct {
	SKU    string
	Counts map[PutAwayState]int
}

// Document number formats
const (
	CounterPurchaseOrder = "purchase_order"
	CounterGRN           = "grn"
)

func FormatPONumber(n int64) string {
	return fmt.Sprintf("PO-%05d", n)
}

func FormatGRNNumber(n int64) string {
	return fmt.Sprintf("GRN-%05d", n)
}
