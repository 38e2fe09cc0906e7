package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/heyarsen/Content-Factory-sub005/internal/platform/wayforpay"

	"github.com/stretchr/testify/require"
)

const testMerchant = "merchant"

func testSigner() *wayforpay.Signer {
	return wayforpay.NewSigner("secret")
}

func signedPayload(t *testing.T, status wayforpay.TransactionStatus) map[string]any {
	t.Helper()
	signer := testSigner()
	payload := map[string]any{
		"orderReference":    "sub-1",
		"transactionStatus": string(status),
		"amount":            5.5,
		"currency":          "USD",
		"authCode":          "123456",
		"cardPan":           "44****11",
		"reasonCode":        "1100",
	}
	fields := wayforpay.WebhookFields(testMerchant, "sub-1", 5.5, "USD", "123456", "44****11", status, "1100")
	payload["merchantSignature"] = signer.Sign(fields...)
	return payload
}

func TestDecodeWebhook_PlainObject(t *testing.T) {
	raw, _ := json.Marshal(signedPayload(t, wayforpay.StatusApproved))

	ev, err := DecodeWebhook(raw, testSigner(), testMerchant)
	require.NoError(t, err)
	require.Equal(t, "sub-1", ev.OrderReference)
	require.Equal(t, wayforpay.StatusApproved, ev.Status)
	require.Equal(t, 5.5, ev.Amount)
	require.Equal(t, "USD", ev.Currency)
	require.True(t, ev.Verified)
}

func TestDecodeWebhook_DoubleEncodedString(t *testing.T) {
	inner, _ := json.Marshal(signedPayload(t, wayforpay.StatusApproved))
	raw, _ := json.Marshal(string(inner))

	ev, err := DecodeWebhook(raw, testSigner(), testMerchant)
	require.NoError(t, err)
	require.Equal(t, "sub-1", ev.OrderReference)
	require.True(t, ev.Verified)
}

func TestDecodeWebhook_SingleKeyQuirk(t *testing.T) {
	inner, _ := json.Marshal(signedPayload(t, wayforpay.StatusApproved))
	raw, _ := json.Marshal(map[string]string{string(inner): ""})

	ev, err := DecodeWebhook(raw, testSigner(), testMerchant)
	require.NoError(t, err)
	require.Equal(t, "sub-1", ev.OrderReference)
	require.True(t, ev.Verified)
}

func TestDecodeWebhook_MissingReferenceRejected(t *testing.T) {
	raw := []byte(`{"transactionStatus":"Approved","amount":5}`)

	_, err := DecodeWebhook(raw, testSigner(), testMerchant)
	require.ErrorIs(t, err, ErrNoOrderReference)
}

func TestDecodeWebhook_MissingSignatureIsUnverified(t *testing.T) {
	payload := signedPayload(t, wayforpay.StatusApproved)
	delete(payload, "merchantSignature")
	raw, _ := json.Marshal(payload)

	ev, err := DecodeWebhook(raw, testSigner(), testMerchant)
	require.NoError(t, err)
	require.False(t, ev.Verified)
}

func TestDecodeWebhook_BadSignatureIsUnverified(t *testing.T) {
	payload := signedPayload(t, wayforpay.StatusApproved)
	payload["merchantSignature"] = "deadbeefdeadbeefdeadbeefdeadbeef"
	raw, _ := json.Marshal(payload)

	ev, err := DecodeWebhook(raw, testSigner(), testMerchant)
	require.NoError(t, err)
	require.False(t, ev.Verified)
}

func TestDecodeWebhook_StringAmountCoerced(t *testing.T) {
	payload := signedPayload(t, wayforpay.StatusApproved)
	payload["amount"] = "5.5"
	raw, _ := json.Marshal(payload)

	ev, err := DecodeWebhook(raw, testSigner(), testMerchant)
	require.NoError(t, err)
	require.Equal(t, 5.5, ev.Amount)
	require.True(t, ev.Verified)
}

func TestDecodeWebhook_Garbage(t *testing.T) {
	_, err := DecodeWebhook([]byte("not json at all"), testSigner(), testMerchant)
	require.Error(t, err)
}
