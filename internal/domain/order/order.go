package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/procurement-portal/internal/domain/weight"
)

// HistoryKindUpdate tags history entries produced by item or unit edits.
const HistoryKindUpdate = "Update"

// SystemActorName is recorded on history entries without an acting user.
const SystemActorName = "system"

// Order is a user's procurement request. Owner name and tax id are a
// snapshot taken at creation and never change afterwards.
type Order struct {
	ID           string
	UserID       string
	UserName     string
	UserTaxID    string
	CompanyID    string
	DeliveryUnit *string
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
	UpdatedBy    string
	Items        []Item
	History      []HistoryEntry
}

// Item is a snapshot of a product taken when the order was last edited.
type Item struct {
	// ID is persistence bookkeeping only; business comparisons use Code.
	ID          int64
	Code        string
	Description string
	Price       decimal.Decimal
	Weight      decimal.Decimal
	WeightUnit  weight.Unit
	Quantity    int
}

// Subtotal is price times quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// WeightKg is the converted unit weight times quantity.
func (i Item) WeightKg() decimal.Decimal {
	return weight.ToKilograms(i.Weight, i.WeightUnit).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// sameSnapshot reports whether two items would persist identically.
func (i Item) sameSnapshot(o Item) bool {
	return foldCode(i.Code) == foldCode(o.Code) &&
		i.Description == o.Description &&
		i.Price.Equal(o.Price) &&
		i.Weight.Equal(o.Weight) &&
		i.WeightUnit == o.WeightUnit &&
		i.Quantity == o.Quantity
}

// TotalWeightKg sums the converted weight of every item.
func (o *Order) TotalWeightKg() decimal.Decimal {
	return itemsWeightKg(o.Items)
}

// TotalValue sums the subtotal of every item.
func (o *Order) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// TotalUnits sums item quantities.
func (o *Order) TotalUnits() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// OwnedBy reports whether userID owns the order.
func (o *Order) OwnedBy(userID string) bool {
	return userID != "" && o.UserID == userID
}

func itemsWeightKg(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.WeightKg())
	}
	return total
}

// HistoryEntry is an immutable audit record of a change to an order.
type HistoryEntry struct {
	ID        string
	OrderID   string
	CreatedAt time.Time
	// ActorID and ActorName are nil when the change was made by the system.
	ActorID   *string
	ActorName *string
	Kind      string
	Diff      HistoryDiff
}

// Actor returns the display name of whoever made the change.
func (h HistoryEntry) Actor() string {
	if h.ActorName == nil || *h.ActorName == "" {
		return SystemActorName
	}
	return *h.ActorName
}

// HistoryDiff is the structured payload of a HistoryEntry.
type HistoryDiff struct {
	PreviousUnit *string     `json:"previous_unit"`
	NewUnit      *string     `json:"new_unit"`
	Items        []ItemDelta `json:"items"`
}

// ItemDelta records a quantity change of one product. NewQuantity is zero
// when the product was removed.
type ItemDelta struct {
	Code             string `json:"code"`
	Description      string `json:"description"`
	PreviousQuantity int    `json:"previous_quantity"`
	NewQuantity      int    `json:"new_quantity"`
}

// Changeset is one atomic write against an existing order: the header
// fields of Order, the item rows to insert and delete, and at most one new
// history entry.
type Changeset struct {
	Order   *Order
	Insert  []Item
	Delete  []Item
	History *HistoryEntry
}
