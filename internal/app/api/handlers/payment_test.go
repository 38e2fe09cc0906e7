package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/heyarsen/Content-Factory-sub005/internal/app/service/reconcile"
	subsvc "github.com/heyarsen/Content-Factory-sub005/internal/app/service/subscription"
	topsvc "github.com/heyarsen/Content-Factory-sub005/internal/app/service/topup"
	"github.com/heyarsen/Content-Factory-sub005/internal/models"
	"github.com/heyarsen/Content-Factory-sub005/internal/platform/wayforpay"
	"github.com/heyarsen/Content-Factory-sub005/internal/testutil"
	cfgpkg "github.com/heyarsen/Content-Factory-sub005/pkg/config"
	"github.com/heyarsen/Content-Factory-sub005/pkg/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubReconciler struct {
	entry   reconcile.Entry
	event   *reconcile.Event
	ref     string
	outcome models.PaymentEventOutcome
	snap    *reconcile.Snapshot
	err     error
}

func (s *stubReconciler) Apply(_ context.Context, entry reconcile.Entry, ev *reconcile.Event) (models.PaymentEventOutcome, error) {
	s.entry, s.event = entry, ev
	return s.outcome, s.err
}

func (s *stubReconciler) Reconcile(_ context.Context, entry reconcile.Entry, reference string) (*reconcile.Snapshot, error) {
	s.entry, s.ref = entry, reference
	if s.err != nil {
		return nil, s.err
	}
	return s.snap, nil
}

func (s *stubReconciler) Status(_ context.Context, reference string) (*reconcile.Snapshot, error) {
	s.ref = reference
	if s.err != nil {
		return nil, s.err
	}
	return s.snap, nil
}

func newPaymentRouter(t *testing.T, rec reconcile.Reconciler) (*gin.Engine, *gorm.DB, *wayforpay.Client) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	log := zap.NewNop().Sugar()
	gw := wayforpay.NewClient(wayforpay.ClientOptions{
		MerchantAccount: "merchant",
		MerchantSecret:  "secret",
	})
	cfg := &cfgpkg.Config{
		Wayforpay: cfgpkg.WayforpayConfig{
			MerchantAccount: "merchant",
			MerchantDomain:  "example.com",
			ReturnURL:       "https://example.com/return",
			ServiceURL:      "https://example.com/webhook",
		},
		Plans: []*types.Plan{{ID: "plan-basic", Credits: 100, PriceUSD: 10}},
	}

	r := gin.New()
	RegisterPaymentRoutes(r.Group("/api/v1/payment"), rec, subsvc.NewService(db, log), topsvc.NewService(db, log), gw, cfg, log)
	return r, db, gw
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestApiCreateSubscription(t *testing.T) {
	r, db, _ := newPaymentRouter(t, &stubReconciler{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/payment/subscribe",
		CreateSubscriptionRequest{UserID: "u1", PlanID: "plan-basic"})
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	require.Equal(t, 0, env.Code)

	var resp checkoutResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.NotEmpty(t, resp.PaymentReference)
	assert.Equal(t, "merchant", resp.Checkout["merchantAccount"])
	assert.Equal(t, resp.PaymentReference, resp.Checkout["orderReference"])
	assert.NotEmpty(t, resp.Checkout["merchantSignature"])

	// A pending row backs the minted reference.
	var n int64
	require.NoError(t, db.Model(&models.Subscription{}).
		Where("payment_reference = ?", resp.PaymentReference).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestApiCreateSubscription_UnknownPlan(t *testing.T) {
	r, _, _ := newPaymentRouter(t, &stubReconciler{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/payment/subscribe",
		CreateSubscriptionRequest{UserID: "u1", PlanID: "plan-nope"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 40000, decodeEnvelope(t, w).Code)
}

func TestApiCreateTopUp(t *testing.T) {
	r, db, _ := newPaymentRouter(t, &stubReconciler{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/payment/topup",
		CreateTopUpRequest{UserID: "u1", Credits: 50, PriceUSD: 9.99})
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	require.Equal(t, 0, env.Code)

	var resp checkoutResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.NotEmpty(t, resp.PaymentReference)

	var top models.TopUp
	require.NoError(t, db.Where("payment_reference = ?", resp.PaymentReference).First(&top).Error)
	assert.Equal(t, int64(50), top.Credits)
	assert.Equal(t, types.PaymentStatusPending, top.Status)
}

func TestApiCancelSubscription(t *testing.T) {
	r, db, _ := newPaymentRouter(t, &stubReconciler{})

	// Nothing active yet.
	w := doJSON(t, r, http.MethodPost, "/api/v1/payment/cancel",
		CancelSubscriptionRequest{UserID: "u1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 40000, decodeEnvelope(t, w).Code)

	testutil.TestSubscription(t, db,
		testutil.WithSubscriptionUser("u1"),
		testutil.WithSubscriptionStatus(types.SubscriptionStatusActive, types.PaymentStatusCompleted),
	)

	w = doJSON(t, r, http.MethodPost, "/api/v1/payment/cancel",
		CancelSubscriptionRequest{UserID: "u1"})
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	require.Equal(t, 0, env.Code)

	var sub models.Subscription
	require.NoError(t, json.Unmarshal(env.Data, &sub))
	assert.Equal(t, types.SubscriptionStatusCancelled, sub.Status)
}

func webhookBody(t *testing.T, gw *wayforpay.Client, reference string) []byte {
	t.Helper()
	payload := map[string]any{
		"merchantAccount":   gw.MerchantAccount(),
		"orderReference":    reference,
		"transactionStatus": "Approved",
		"amount":            10.0,
		"currency":          "USD",
		"authCode":          "123456",
		"cardPan":           "44****11",
		"reasonCode":        "1100",
	}
	fields := wayforpay.WebhookFields(gw.MerchantAccount(), reference, 10.0, "USD", "123456", "44****11", wayforpay.StatusApproved, "1100")
	payload["merchantSignature"] = gw.Signer().Sign(fields...)
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return raw
}

func TestApiPaymentWebhook_AcksWithSignature(t *testing.T) {
	stub := &stubReconciler{outcome: models.PaymentEventOutcomeApplied}
	r, _, gw := newPaymentRouter(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/webhook",
		bytes.NewReader(webhookBody(t, gw, "sub-1")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var ack wayforpay.Ack
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, "sub-1", ack.OrderReference)
	assert.Equal(t, "accept", ack.Status)
	assert.True(t, gw.Signer().Verify(ack.Signature,
		wayforpay.AckFields(ack.OrderReference, ack.Status, ack.Time)...))

	assert.Equal(t, reconcile.EntryWebhook, stub.entry)
	require.NotNil(t, stub.event)
	assert.Equal(t, "sub-1", stub.event.OrderReference)
	assert.True(t, stub.event.Verified)
}

func TestApiPaymentWebhook_AcksDuplicates(t *testing.T) {
	stub := &stubReconciler{outcome: models.PaymentEventOutcomeDuplicate}
	r, _, gw := newPaymentRouter(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/webhook",
		bytes.NewReader(webhookBody(t, gw, "sub-1")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// Redeliveries stop only on an acknowledged reply.
	require.Equal(t, http.StatusOK, w.Code)
	var ack wayforpay.Ack
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.Equal(t, "accept", ack.Status)
}

func TestApiPaymentWebhook_ApplyErrorWithholdsAck(t *testing.T) {
	stub := &stubReconciler{err: errors.New("storage unavailable")}
	r, _, gw := newPaymentRouter(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/webhook",
		bytes.NewReader(webhookBody(t, gw, "sub-1")))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// Nothing was recorded, so the gateway must keep redelivering.
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), `"signature"`)
}

func TestApiPaymentWebhook_UndecodableBodyRejected(t *testing.T) {
	r, _, _ := newPaymentRouter(t, &stubReconciler{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment/webhook",
		bytes.NewReader([]byte(`{"no":"reference"}`)))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApiPaymentReturn(t *testing.T) {
	stub := &stubReconciler{snap: &reconcile.Snapshot{
		PaymentReference: "sub-1",
		Kind:             "subscription",
		Status:           "active",
		PaymentStatus:    types.PaymentStatusCompleted,
		Completed:        true,
		Balance:          100,
	}}
	r, _, _ := newPaymentRouter(t, stub)

	w := doJSON(t, r, http.MethodPost, "/api/v1/payment/return?orderReference=sub-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	require.Equal(t, 0, env.Code)
	assert.Equal(t, reconcile.EntryReturn, stub.entry)
	assert.Equal(t, "sub-1", stub.ref)

	var snap reconcile.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.True(t, snap.Completed)
	assert.Equal(t, int64(100), snap.Balance)
}

func TestApiPaymentReturn_MissingReference(t *testing.T) {
	r, _, _ := newPaymentRouter(t, &stubReconciler{})

	w := doJSON(t, r, http.MethodPost, "/api/v1/payment/return", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 40000, decodeEnvelope(t, w).Code)
}

func TestApiPaymentStatus(t *testing.T) {
	stub := &stubReconciler{snap: &reconcile.Snapshot{
		PaymentReference: "topup-1",
		Kind:             "topup",
		Status:           "pending",
		PaymentStatus:    types.PaymentStatusPending,
	}}
	r, _, _ := newPaymentRouter(t, stub)

	w := doJSON(t, r, http.MethodGet, "/api/v1/payment/status/topup-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	env := decodeEnvelope(t, w)
	require.Equal(t, 0, env.Code)
	assert.Equal(t, reconcile.EntryPoll, stub.entry)
	assert.Equal(t, "topup-1", stub.ref)

	var snap reconcile.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.False(t, snap.Completed)
}

func TestApiPaymentStatus_UnknownReference(t *testing.T) {
	stub := &stubReconciler{err: reconcile.ErrUnknownReference}
	r, _, _ := newPaymentRouter(t, stub)

	w := doJSON(t, r, http.MethodGet, "/api/v1/payment/status/nope", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 40000, decodeEnvelope(t, w).Code)
}
