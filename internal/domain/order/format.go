package order

import (
	"fmt"
	"strings"
)

// FormatOperatorSummary renders the order for the operator chat: contact
// details, line items, and a financial breakdown when any discount applied.
func FormatOperatorSummary(o *Order) string {
	var b strings.Builder

	fmt.Fprintf(&b, "New order #%s\n", o.ID)
	fmt.Fprintf(&b, "Customer: %s\n", o.Delivery.Name)
	if o.Delivery.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", o.Delivery.Phone)
	}
	if o.Delivery.Address != "" {
		fmt.Fprintf(&b, "Address: %s\n", o.Delivery.Address)
	}
	if o.Delivery.Payment != "" {
		fmt.Fprintf(&b, "Payment: %s\n", o.Delivery.Payment)
	}
	if o.Delivery.Comment != "" {
		fmt.Fprintf(&b, "Comment: %s\n", o.Delivery.Comment)
	}

	b.WriteString("\nItems:\n")
	for _, item := range o.Items {
		fmt.Fprintf(&b, "- %s (%d x %s)\n", item.Name, item.Quantity, item.UnitPrice)
	}

	hasDiscounts := o.NewCustomerDiscount.IsPositive() ||
		o.PromoDiscount.IsPositive() || o.BonusesUsed.IsPositive()
	if hasDiscounts {
		fmt.Fprintf(&b, "\nSubtotal: %s\n", o.Subtotal)
		if o.NewCustomerDiscount.IsPositive() {
			fmt.Fprintf(&b, "New customer discount: -%s\n", o.NewCustomerDiscount)
		}
		if o.PromoDiscount.IsPositive() {
			fmt.Fprintf(&b, "Promo %s: -%s\n", o.PromoCode, o.PromoDiscount)
		}
		if o.BonusesUsed.IsPositive() {
			fmt.Fprintf(&b, "Bonuses: -%s\n", o.BonusesUsed)
		}
	}
	fmt.Fprintf(&b, "\nTotal: %s", o.Total)

	return b.String()
}

// Customer-facing status texts keyed by transition outcome.

func formatCustomerAccepted(o *Order) string {
	return fmt.Sprintf("Your order #%s has been received!\n"+
		"A manager will contact you shortly.\nTotal: %s", o.ID, o.Total)
}

func formatCustomerCompleted(o *Order) string {
	return fmt.Sprintf("Your order #%s is on its way!\n"+
		"Cashback has been credited. Thank you for your purchase!", o.ID)
}

func formatCustomerCancelled(o *Order) string {
	return fmt.Sprintf("Your order #%s has been cancelled.", o.ID)
}

func formatReferrerInvite() string {
	return "Your friend placed their first order! You earned 100 bonus points."
}
