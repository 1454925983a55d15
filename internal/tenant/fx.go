package tenant

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("tenant",
	fx.Provide(NewRouter),
	fx.Provide(NewDDL),
	fx.Provide(NewProvisioner),
	fx.Invoke(func(lc fx.Lifecycle, router *Router) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				router.Close()
				return nil
			},
		})
	}),
)
