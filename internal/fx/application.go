package fx

import (
	"tradegateway/internal/module/connection"
	"tradegateway/internal/module/order"
	"tradegateway/internal/module/portfolio"

	"go.uber.org/fx"
)

// Application creates the main FX application with all modules
func Application() *fx.App {
	options := []fx.Option{
		// Core modules
		CoreModule,
		BrokersModule,

		// Feature modules
		connection.Module,
		portfolio.Module,
		order.Module,

		// App assembly (migrations + server)
		AppModule,
	}

	return fx.New(options...)
}
