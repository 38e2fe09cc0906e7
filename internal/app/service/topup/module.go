package topup

import "go.uber.org/fx"

// Module exposes the topup service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
