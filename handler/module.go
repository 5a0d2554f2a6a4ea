package handler

import "go.uber.org/fx"

func Module() fx.Option {
	return fx.Module("handler",
		fx.Provide(NewEvalHandler),
		fx.Provide(NewHealthHandler),
		fx.Provide(NewEvalRoute),
		fx.Provide(NewHealthRoute),
	)
}
