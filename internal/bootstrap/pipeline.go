package bootstrap

import (
	"log/slog"

	"github.com/eleven-am/vision-backend/internal/analysis"
	"github.com/eleven-am/vision-backend/internal/audit"
	"github.com/eleven-am/vision-backend/internal/frames"
	"github.com/eleven-am/vision-backend/internal/live"
	"github.com/eleven-am/vision-backend/internal/llm"
	"github.com/eleven-am/vision-backend/internal/media"
	"github.com/eleven-am/vision-backend/internal/prompt"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

func ProvideEncoder(cfg *Config) *media.Encoder {
	return media.NewEncoder(media.EncoderConfig{
		MaxInlineBytes:  cfg.MaxInlineBytes,
		MaxInlineHeight: cfg.MaxInlineHeight,
	})
}

func ProvideExtractor(cfg *Config, logger *slog.Logger) *frames.Extractor {
	return frames.NewExtractor(frames.Config{
		FFmpegPath:  cfg.FFmpegPath,
		FFprobePath: cfg.FFprobePath,
		Height:      cfg.FrameHeight,
		Timeout:     cfg.FrameTimeout,
	}, frames.ExecRunner{}, logger)
}

func ProvideModelClient(cfg *Config, logger *slog.Logger) llm.Client {
	if cfg.LLMProvider == ProviderOllama {
		return llm.NewOllamaClient(llm.OllamaConfig{
			URL:              cfg.OllamaURL,
			Model:            cfg.OllamaModel,
			Timeout:          cfg.LLMTimeout,
			MaxResponseBytes: cfg.MaxResponseBytes,
		}, logger)
	}
	return llm.NewAzureClient(llm.Config{
		Endpoint:         cfg.Azure.Endpoint,
		APIKey:           cfg.Azure.APIKey,
		DeploymentID:     cfg.Azure.Deployment,
		APIVersion:       cfg.Azure.APIVersion,
		Timeout:          cfg.LLMTimeout,
		MaxResponseBytes: cfg.MaxResponseBytes,
	}, logger)
}

func ProvideAnalyzer(cfg *Config, encoder *media.Encoder, extractor *frames.Extractor, client llm.Client, logger *slog.Logger) *analysis.Analyzer {
	return analysis.NewAnalyzer(
		analysis.Config{FrameCount: cfg.FrameCount},
		encoder,
		prompt.NewAssembler(),
		client,
		extractor,
		logger,
	)
}

func ProvideAnalysisHandler(cfg *Config, analyzer *analysis.Analyzer, redisClient *redis.Client, store *audit.Store, logger *slog.Logger) *analysis.Handler {
	var tracker analysis.SequenceTracker
	if redisClient != nil {
		tracker = live.NewRedisTracker(redisClient, cfg.LiveSequenceTTL)
	}

	var recorder audit.Recorder = audit.NoopRecorder{}
	if store != nil {
		recorder = store
	}

	return analysis.NewHandler(analyzer, tracker, recorder, cfg.ScratchDir, logger)
}

var PipelineModule = fx.Options(
	fx.Provide(
		ProvideEncoder,
		ProvideExtractor,
		ProvideModelClient,
		ProvideAnalyzer,
		ProvideAnalysisHandler,
	),
)
