package biz

import "go.uber.org/fx"

// Module provides the business services.
var Module = fx.Module("biz",
	fx.Provide(
		NewAuthService,
		NewPermissionService,
	),
)
