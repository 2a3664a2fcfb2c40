package billing

import (
	"time"

	"github.com/andy/tally/internal/domain"
	"github.com/shopspring/decimal"
)

// LineItemUpdate holds the fields to change on a line item; nil fields are left alone.
type LineItemUpdate struct {
	Description *string
	Quantity    *decimal.Decimal
	UnitPrice   *decimal.Decimal
}

// AddLineItem appends an item and reconciles. The stored subtotal is reset so it is
// re-derived from the items.
func AddLineItem(inv *domain.Invoice, item domain.InvoiceLineItem, today time.Time) error {
	if !inv.CanEdit() {
		return reject("AddLineItem", ErrInvoiceLocked, "status %s", inv.Status)
	}
	item.Recalculate()
	if err := item.Validate(); err != nil {
		return reject("AddLineItem", ErrInvalidLineItem, "%v", err)
	}

	item.InvoiceID = inv.ID
	inv.LineItems = append(inv.LineItems, item)
	inv.Subtotal = decimal.Zero
	Reconcile(inv, today)
	return nil
}

// UpdateLineItem changes an existing item in place, identified by its index in LineItems.
func UpdateLineItem(inv *domain.Invoice, idx int, changes LineItemUpdate, today time.Time) error {
	if !inv.CanEdit() {
		return reject("UpdateLineItem", ErrInvoiceLocked, "status %s", inv.Status)
	}
	if idx < 0 || idx >= len(inv.LineItems) {
		return reject("UpdateLineItem", ErrLineItemNotFound, "index %d", idx)
	}

	item := inv.LineItems[idx]
	if changes.Description != nil {
		item.Description = *changes.Description
	}
	if changes.Quantity != nil {
		item.Quantity = *changes.Quantity
	}
	if changes.UnitPrice != nil {
		item.UnitPrice = *changes.UnitPrice
	}
	item.Recalculate()
	if err := item.Validate(); err != nil {
		return reject("UpdateLineItem", ErrInvalidLineItem, "%v", err)
	}

	inv.LineItems[idx] = item
	inv.Subtotal = decimal.Zero
	Reconcile(inv, today)
	return nil
}

// RemoveLineItem deletes the item at idx and reconciles.
func RemoveLineItem(inv *domain.Invoice, idx int, today time.Time) (domain.InvoiceLineItem, error) {
	if !inv.CanEdit() {
		return domain.InvoiceLineItem{}, reject("RemoveLineItem", ErrInvoiceLocked, "status %s", inv.Status)
	}
	if idx < 0 || idx >= len(inv.LineItems) {
		return domain.InvoiceLineItem{}, reject("RemoveLineItem", ErrLineItemNotFound, "index %d", idx)
	}

	removed := inv.LineItems[idx]
	inv.LineItems = append(inv.LineItems[:idx:idx], inv.LineItems[idx+1:]...)
	inv.Subtotal = decimal.Zero
	Reconcile(inv, today)
	return removed, nil
}

// SetTaxAndDiscount replaces the tax rate (percent, invalid = no tax) and discount.
func SetTaxAndDiscount(inv *domain.Invoice, taxRate decimal.NullDecimal, discount decimal.Decimal, today time.Time) error {
	if !inv.CanEdit() {
		return reject("SetTaxAndDiscount", ErrInvoiceLocked, "status %s", inv.Status)
	}
	if discount.IsNegative() {
		return reject("SetTaxAndDiscount", ErrInvalidAdjustment, "discount %s is negative", discount)
	}
	if taxRate.Valid && taxRate.Decimal.IsNegative() {
		return reject("SetTaxAndDiscount", ErrInvalidAdjustment, "tax rate %s is negative", taxRate.Decimal)
	}

	inv.TaxRate = taxRate
	inv.Discount = discount
	Reconcile(inv, today)
	return nil
}
