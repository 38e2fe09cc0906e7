package wayforpay

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
)

// Signer produces and verifies the gateway's HMAC-MD5 signatures. Every
// signature covers a ';'-joined ordered field list keyed by the merchant
// secret; the field order is fixed per message type by the gateway protocol.
type Signer struct {
	secret []byte
}

func NewSigner(merchantSecret string) *Signer {
	return &Signer{secret: []byte(merchantSecret)}
}

func (s *Signer) Sign(fields ...string) string {
	mac := hmac.New(md5.New, s.secret)
	mac.Write([]byte(strings.Join(fields, ";")))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares a reported signature against the expected one in constant time.
func (s *Signer) Verify(reported string, fields ...string) bool {
	return hmac.Equal([]byte(strings.ToLower(reported)), []byte(s.Sign(fields...)))
}

// WebhookFields returns the ordered field list the gateway signs on a
// payment notification.
func WebhookFields(merchantAccount, orderReference string, amount float64, currency, authCode, cardPan string, status TransactionStatus, reasonCode string) []string {
	return []string{
		merchantAccount,
		orderReference,
		formatAmount(amount),
		currency,
		authCode,
		cardPan,
		string(status),
		reasonCode,
	}
}

// AckFields returns the ordered field list signed on the webhook acknowledgement.
func AckFields(orderReference, status string, unixTime int64) []string {
	return []string{orderReference, status, strconv.FormatInt(unixTime, 10)}
}

// StatusRequestFields returns the ordered field list signed on CHECK_STATUS.
func StatusRequestFields(merchantAccount, orderReference string) []string {
	return []string{merchantAccount, orderReference}
}

// PurchaseFields returns the ordered field list signed on checkout creation.
func PurchaseFields(merchantAccount, merchantDomain, orderReference string, orderDate int64, amount float64, currency string, productNames []string, productCounts []int64, productPrices []float64) []string {
	fields := []string{
		merchantAccount,
		merchantDomain,
		orderReference,
		strconv.FormatInt(orderDate, 10),
		formatAmount(amount),
		currency,
	}
	fields = append(fields, productNames...)
	for _, c := range productCounts {
		fields = append(fields, strconv.FormatInt(c, 10))
	}
	for _, p := range productPrices {
		fields = append(fields, formatAmount(p))
	}
	return fields
}

// formatAmount renders amounts the way the gateway canonicalizes them:
// no trailing zeros, '.' separator.
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
