// Package gateway abstracts the external payment provider. The core
// never talks to the provider except through Client, and never computes
// signature material itself.
package gateway

import "context"

// Client is the boundary to the external payment gateway.
type Client interface {
	// CreateOrder registers an order with the gateway and returns the
	// gateway-assigned order id. Transient failures surface as
	// apperr.TransientGateway after bounded retries.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error)

	// VerifySignature checks the callback signature the gateway's
	// checkout handler posted back. Pure local computation; false means
	// the callback is forged or corrupt, never "try again".
	VerifySignature(orderID, paymentID, signature string) bool
}
