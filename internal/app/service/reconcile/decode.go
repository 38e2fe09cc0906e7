package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/heyarsen/Content-Factory-sub005/internal/platform/wayforpay"
)

var ErrNoOrderReference = errors.New("payload has no order reference")

// Event is the canonical record every entry point reduces a gateway signal
// to. Decoding happens exactly once at the boundary; everything downstream
// works on this shape only.
type Event struct {
	OrderReference string
	Status         wayforpay.TransactionStatus
	Amount         float64
	Currency       string
	// Verified is false when the payload carried no signature or a signature
	// that did not match. Such events are still processed but flagged in the
	// audit trail.
	Verified bool
	// Raw keeps the normalized payload for the audit metadata blob.
	Raw map[string]any
}

// DecodeWebhook normalizes the gateway's webhook body. The gateway is not
// consistent about encoding: the body may be a plain JSON object, a JSON
// string wrapping an object, or an object whose single key is itself the
// JSON document (an artifact of how it form-posts notifications).
func DecodeWebhook(raw []byte, signer *wayforpay.Signer, merchantAccount string) (*Event, error) {
	payload, err := normalizePayload(raw)
	if err != nil {
		return nil, err
	}

	ref := stringField(payload, "orderReference")
	if ref == "" {
		return nil, ErrNoOrderReference
	}

	ev := &Event{
		OrderReference: ref,
		Status:         wayforpay.TransactionStatus(stringField(payload, "transactionStatus")),
		Amount:         floatField(payload, "amount"),
		Currency:       stringField(payload, "currency"),
		Raw:            payload,
	}

	if sig := stringField(payload, "merchantSignature"); sig != "" {
		fields := wayforpay.WebhookFields(
			merchantAccount,
			ev.OrderReference,
			ev.Amount,
			ev.Currency,
			stringField(payload, "authCode"),
			stringField(payload, "cardPan"),
			ev.Status,
			stringField(payload, "reasonCode"),
		)
		ev.Verified = signer.Verify(sig, fields...)
	}

	return ev, nil
}

func normalizePayload(raw []byte) (map[string]any, error) {
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		// Double-encoded: the body is a JSON string containing the object.
		var nested string
		if err2 := json.Unmarshal(raw, &nested); err2 != nil {
			return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
		}
		if err2 := json.Unmarshal([]byte(nested), &payload); err2 != nil {
			return nil, fmt.Errorf("failed to decode nested webhook payload: %w", err2)
		}
	}

	// Single-key quirk: the whole document arrives as the only map key.
	if len(payload) == 1 {
		for k, v := range payload {
			if !strings.HasPrefix(strings.TrimSpace(k), "{") {
				continue
			}
			if s, ok := v.(string); ok && s != "" {
				break
			}
			var inner map[string]any
			if err := json.Unmarshal([]byte(k), &inner); err == nil {
				payload = inner
			}
		}
	}

	return payload, nil
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return ""
}

func floatField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case json.Number:
		f, _ := v.Float64()
		return f
	}
	return 0
}
