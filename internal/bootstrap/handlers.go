package bootstrap

import (
	"log/slog"
	"os"

	"github.com/eleven-am/vision-backend/internal/analysis"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

type HandlerParams struct {
	fx.In

	AnalysisHandler *analysis.Handler
	Config          *Config
	Logger          *slog.Logger
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	params.AnalysisHandler.RegisterRoutes(e.Group("/api"))

	e.GET("/swagger/*", echoSwagger.EchoWrapHandlerV3())

	if info, err := os.Stat(params.Config.StaticDir); err == nil && info.IsDir() {
		e.Static("/", params.Config.StaticDir)
	} else {
		params.Logger.Debug("static directory not found, not serving ui", "dir", params.Config.StaticDir)
	}
}

var HandlersModule = fx.Options(
	fx.Invoke(RegisterRoutes),
)

func Run() {
	fx.New(
		fx.Provide(LoadConfig, ProvideLogger),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With("component", "fx")}
		}),
		InfrastructureModule,
		PipelineModule,
		ServerModule,
		HealthModule,
		HandlersModule,
	).Run()
}
