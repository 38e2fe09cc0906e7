package history

import "go.uber.org/fx"

// Module exposes the payment event recorder via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
