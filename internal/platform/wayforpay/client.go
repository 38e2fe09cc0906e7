package wayforpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the gateway's merchant API. The only call this service
// consumes is CHECK_STATUS; it is idempotent on the gateway side and safe to
// repeat.
type Client struct {
	http            *http.Client
	apiURL          string
	merchantAccount string
	signer          *Signer
}

type ClientOptions struct {
	APIURL          string
	MerchantAccount string
	MerchantSecret  string
	Timeout         time.Duration
}

func NewClient(opts ClientOptions) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:            &http.Client{Timeout: timeout},
		apiURL:          opts.APIURL,
		merchantAccount: opts.MerchantAccount,
		signer:          NewSigner(opts.MerchantSecret),
	}
}

// StatusResponse is the subset of the CHECK_STATUS reply this service reads.
type StatusResponse struct {
	OrderReference    string            `json:"orderReference"`
	OrderStatus       string            `json:"orderStatus"`
	TransactionStatus TransactionStatus `json:"transactionStatus"`
	Amount            float64           `json:"amount"`
	Currency          string            `json:"currency"`
	ReasonCode        json.Number       `json:"reasonCode"`
	Reason            string            `json:"reason"`
}

type checkStatusRequest struct {
	TransactionType   string `json:"transactionType"`
	MerchantAccount   string `json:"merchantAccount"`
	OrderReference    string `json:"orderReference"`
	MerchantSignature string `json:"merchantSignature"`
	APIVersion        int    `json:"apiVersion"`
}

// CheckStatus queries the gateway for the current state of an order.
func (c *Client) CheckStatus(ctx context.Context, orderReference string) (*StatusResponse, error) {
	reqBody := checkStatusRequest{
		TransactionType:   "CHECK_STATUS",
		MerchantAccount:   c.merchantAccount,
		OrderReference:    orderReference,
		MerchantSignature: c.signer.Sign(StatusRequestFields(c.merchantAccount, orderReference)...),
		APIVersion:        1,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal check status request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build check status request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("check status call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read check status response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(body))
	}

	var out StatusResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode check status response: %w", err)
	}
	if out.OrderReference == "" {
		out.OrderReference = orderReference
	}
	return &out, nil
}

// Ack is the structured acknowledgement the gateway requires to stop
// redelivering a notification.
type Ack struct {
	OrderReference string `json:"orderReference"`
	Status         string `json:"status"`
	Time           int64  `json:"time"`
	Signature      string `json:"signature"`
}

// BuildAck signs the acceptance reply for a webhook notification.
func (c *Client) BuildAck(orderReference string, now time.Time) *Ack {
	const accept = "accept"
	t := now.Unix()
	return &Ack{
		OrderReference: orderReference,
		Status:         accept,
		Time:           t,
		Signature:      c.signer.Sign(AckFields(orderReference, accept, t)...),
	}
}

// Signer exposes the merchant signer for webhook verification and checkout
// form signing.
func (c *Client) Signer() *Signer { return c.signer }

// MerchantAccount returns the configured merchant id.
func (c *Client) MerchantAccount() string { return c.merchantAccount }
