package apiclient

import (
	"context"
	"encoding/json"
)

func (c *Client) Subscription(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/billing/subscription", nil, "Failed to fetch subscription")
}

func (c *Client) Plans(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/billing/plans", nil, "Failed to fetch plans")
}

func (c *Client) CreateSubscription(ctx context.Context, planID, paymentMethodID string) (json.RawMessage, error) {
	return c.post(ctx, "/billing/subscription", map[string]string{
		"planId":          planID,
		"paymentMethodId": paymentMethodID,
	}, "Failed to create subscription")
}

func (c *Client) UpdateSubscription(ctx context.Context, subscriptionID, planID string) (json.RawMessage, error) {
	return c.put(ctx, "/billing/subscription/"+seg(subscriptionID), map[string]string{
		"planId": planID,
	}, "Failed to update subscription")
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (json.RawMessage, error) {
	return c.delete(ctx, "/billing/subscription/"+seg(subscriptionID), "Failed to cancel subscription")
}

func (c *Client) PaymentMethods(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/billing/payment-methods", nil, "Failed to fetch payment methods")
}

func (c *Client) AddPaymentMethod(ctx context.Context, paymentMethodID string) (json.RawMessage, error) {
	return c.post(ctx, "/billing/payment-methods", map[string]string{
		"paymentMethodId": paymentMethodID,
	}, "Failed to add payment method")
}

func (c *Client) DeletePaymentMethod(ctx context.Context, paymentMethodID string) (json.RawMessage, error) {
	return c.delete(ctx, "/billing/payment-methods/"+seg(paymentMethodID), "Failed to delete payment method")
}

func (c *Client) Invoices(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/billing/invoices", nil, "Failed to fetch invoices")
}

// DownloadInvoice returns the invoice document as sent, usually a PDF.
func (c *Client) DownloadInvoice(ctx context.Context, invoiceID string) ([]byte, error) {
	return c.do(ctx, "GET", "/billing/invoices/"+seg(invoiceID)+"/download", nil, nil, "Failed to download invoice")
}

func (c *Client) Usage(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/billing/usage", nil, "Failed to fetch usage data")
}
