package wayforpay

import (
	cfgpkg "github.com/heyarsen/Content-Factory-sub005/pkg/config"

	"go.uber.org/fx"
)

func NewFromConfig(cfg *cfgpkg.Config) *Client {
	return NewClient(ClientOptions{
		APIURL:          cfg.Wayforpay.APIURL,
		MerchantAccount: cfg.Wayforpay.MerchantAccount,
		MerchantSecret:  cfg.Wayforpay.MerchantSecret,
		Timeout:         cfg.Wayforpay.Timeout(),
	})
}

var Module = fx.Options(
	fx.Provide(NewFromConfig),
)
