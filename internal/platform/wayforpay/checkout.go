package wayforpay

import "time"

// CheckoutRequest describes a purchase to present to the gateway's hosted
// checkout page.
type CheckoutRequest struct {
	OrderReference string
	Amount         float64
	Currency       string
	ProductName    string
	MerchantDomain string
	ReturnURL      string
	ServiceURL     string
}

// BuildCheckout returns the signed form fields the client submits to the
// gateway to open checkout for an order.
func (c *Client) BuildCheckout(req CheckoutRequest, now time.Time) map[string]any {
	orderDate := now.Unix()
	fields := PurchaseFields(
		c.merchantAccount,
		req.MerchantDomain,
		req.OrderReference,
		orderDate,
		req.Amount,
		req.Currency,
		[]string{req.ProductName},
		[]int64{1},
		[]float64{req.Amount},
	)
	return map[string]any{
		"merchantAccount":    c.merchantAccount,
		"merchantDomainName": req.MerchantDomain,
		"orderReference":     req.OrderReference,
		"orderDate":          orderDate,
		"amount":             req.Amount,
		"currency":           req.Currency,
		"productName":        []string{req.ProductName},
		"productCount":       []int64{1},
		"productPrice":       []float64{req.Amount},
		"returnUrl":          req.ReturnURL,
		"serviceUrl":         req.ServiceURL,
		"merchantSignature":  c.signer.Sign(fields...),
	}
}
