package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/heyarsen/Content-Factory-sub005/internal/app/service/reconcile"
	subsvc "github.com/heyarsen/Content-Factory-sub005/internal/app/service/subscription"
	topsvc "github.com/heyarsen/Content-Factory-sub005/internal/app/service/topup"
	"github.com/heyarsen/Content-Factory-sub005/internal/platform/wayforpay"
	cfgpkg "github.com/heyarsen/Content-Factory-sub005/pkg/config"
	"github.com/heyarsen/Content-Factory-sub005/pkg/logctx"
	"github.com/heyarsen/Content-Factory-sub005/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CreateSubscriptionRequest struct {
	UserID string `json:"user_id" binding:"required"`
	PlanID string `json:"plan_id" binding:"required"`
}

type CreateTopUpRequest struct {
	UserID   string  `json:"user_id" binding:"required"`
	Credits  int64   `json:"credits" binding:"required,gt=0"`
	PriceUSD float64 `json:"price_usd" binding:"required,gt=0"`
}

type CancelSubscriptionRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type checkoutResponse struct {
	PaymentReference string         `json:"payment_reference"`
	Checkout         map[string]any `json:"checkout"`
}

// @Summary      Create subscription
// @Description  Creates a pending subscription and returns signed checkout form fields for the gateway.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body handlers.CreateSubscriptionRequest true "Subscription purchase request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/payment/subscribe [post]
func ApiCreateSubscription(subs *subsvc.Service, gw *wayforpay.Client, cfg *cfgpkg.Config, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		plan := cfg.GetPlan(req.PlanID)
		if plan == nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "unknown plan: "+req.PlanID))
			return
		}

		sub, err := subs.Create(c.Request.Context(), req.UserID, req.PlanID)
		if err != nil {
			logctx.FromGin(c, log).Errorw("subscription_create_failed", "error", err)
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}

		checkout := gw.BuildCheckout(wayforpay.CheckoutRequest{
			OrderReference: sub.PaymentReference,
			Amount:         plan.PriceUSD,
			Currency:       "USD",
			ProductName:    fmt.Sprintf("Subscription plan %s", plan.ID),
			MerchantDomain: cfg.Wayforpay.MerchantDomain,
			ReturnURL:      cfg.Wayforpay.ReturnURL,
			ServiceURL:     cfg.Wayforpay.ServiceURL,
		}, time.Now())

		c.JSON(http.StatusOK, response.OKT(checkoutResponse{
			PaymentReference: sub.PaymentReference,
			Checkout:         checkout,
		}))
	}
}

// @Summary      Create top-up
// @Description  Creates a pending one-off credit purchase and returns signed checkout form fields.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body handlers.CreateTopUpRequest true "Top-up purchase request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/payment/topup [post]
func ApiCreateTopUp(topups *topsvc.Service, gw *wayforpay.Client, cfg *cfgpkg.Config, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateTopUpRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		top, err := topups.Create(c.Request.Context(), req.UserID, req.Credits, req.PriceUSD)
		if err != nil {
			logctx.FromGin(c, log).Errorw("topup_create_failed", "error", err)
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}

		checkout := gw.BuildCheckout(wayforpay.CheckoutRequest{
			OrderReference: top.PaymentReference,
			Amount:         req.PriceUSD,
			Currency:       "USD",
			ProductName:    fmt.Sprintf("%d credits", req.Credits),
			MerchantDomain: cfg.Wayforpay.MerchantDomain,
			ReturnURL:      cfg.Wayforpay.ReturnURL,
			ServiceURL:     cfg.Wayforpay.ServiceURL,
		}, time.Now())

		c.JSON(http.StatusOK, response.OKT(checkoutResponse{
			PaymentReference: top.PaymentReference,
			Checkout:         checkout,
		}))
	}
}

// @Summary      Cancel subscription
// @Description  Cancels the user's active subscription. The row stays readable but is locked against credit mutation.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body handlers.CancelSubscriptionRequest true "Cancellation request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/payment/cancel [post]
func ApiCancelSubscription(subs *subsvc.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CancelSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		sub, err := subs.CancelByUser(c.Request.Context(), req.UserID, time.Now())
		if err != nil {
			if errors.Is(err, subsvc.ErrNotFound) || errors.Is(err, subsvc.ErrAlreadyCancelled) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			logctx.FromGin(c, log).Errorw("subscription_cancel_failed", "error", err)
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

// @Summary      Payment webhook
// @Description  Handles gateway payment notifications. Delivery is at-least-once; duplicates are acknowledged without reapplying.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  wayforpay.Ack
// @Router       /api/v1/payment/webhook [post]
func ApiPaymentWebhook(rec reconcile.Reconciler, gw *wayforpay.Client, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		ev, err := reconcile.DecodeWebhook(raw, gw.Signer(), gw.MerchantAccount())
		if err != nil {
			// No extractable order reference: reject without downstream processing.
			logctx.FromGin(c, log).Errorw("webhook_decode_failed", "error", err)
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		outcome, err := rec.Apply(c.Request.Context(), reconcile.EntryWebhook, ev)
		if err != nil {
			// No outcome was recorded; withholding the ack keeps the gateway's
			// redelivery as the retry channel.
			logctx.FromGin(c, log).Errorw("webhook_apply_failed", "payment_reference", ev.OrderReference, "error", err)
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		logctx.FromGin(c, log).Infow("webhook_handled", "payment_reference", ev.OrderReference, "outcome", outcome)

		// Every recorded outcome gets the signed acknowledgement, duplicates
		// and rejections included, so the gateway stops redelivering.
		c.JSON(http.StatusOK, gw.BuildAck(ev.OrderReference, time.Now()))
	}
}

// @Summary      Payment return
// @Description  Browser return-redirect after checkout. Reconciles best-effort and reports the snapshot.
// @Tags         Payment
// @Produce      json
// @Param        orderReference query string true "Order reference"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/payment/return [post]
func ApiPaymentReturn(rec reconcile.Reconciler, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := c.Query("orderReference")
		if ref == "" {
			ref = c.PostForm("orderReference")
		}
		if ref == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing orderReference"))
			return
		}

		snap, err := rec.Reconcile(c.Request.Context(), reconcile.EntryReturn, ref)
		if err != nil {
			logctx.FromGin(c, log).Warnw("return_reconcile_failed", "payment_reference", ref, "error", err)
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "unknown payment reference"))
			return
		}
		c.JSON(http.StatusOK, response.OKT(snap))
	}
}

// @Summary      Payment status
// @Description  Reconciles and reports the current payment state. Safe to call repeatedly; degrades to last-known state when the gateway is unreachable.
// @Tags         Payment
// @Produce      json
// @Param        reference path string true "Payment reference"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/payment/status/{reference} [get]
func ApiPaymentStatus(rec reconcile.Reconciler, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := c.Param("reference")
		snap, err := rec.Reconcile(c.Request.Context(), reconcile.EntryPoll, ref)
		if err != nil {
			logctx.FromGin(c, log).Warnw("status_reconcile_failed", "payment_reference", ref, "error", err)
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "unknown payment reference"))
			return
		}
		c.JSON(http.StatusOK, response.OKT(snap))
	}
}

// RegisterPaymentRoutes mounts the payment API under the provided group.
func RegisterPaymentRoutes(r gin.IRouter, rec reconcile.Reconciler, subs *subsvc.Service, topups *topsvc.Service, gw *wayforpay.Client, cfg *cfgpkg.Config, log *zap.SugaredLogger) {
	r.POST("/subscribe", ApiCreateSubscription(subs, gw, cfg, log))
	r.POST("/topup", ApiCreateTopUp(topups, gw, cfg, log))
	r.POST("/cancel", ApiCancelSubscription(subs, log))
	r.POST("/webhook", ApiPaymentWebhook(rec, gw, log))
	r.GET("/return", ApiPaymentReturn(rec, log))
	r.POST("/return", ApiPaymentReturn(rec, log))
	r.GET("/status/:reference", ApiPaymentStatus(rec, log))
}
