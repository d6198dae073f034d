package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eleven-am/vision-backend/internal/client"
	"github.com/eleven-am/vision-backend/internal/live"
	"github.com/google/uuid"
	"github.com/lmittmann/tint"
)

func main() {
	server := flag.String("server", envOr("VISION_SERVER", "http://localhost:8080"), "vision backend base URL")
	snapshot := flag.String("file", "", "snapshot file to re-analyze on every tick")
	interval := flag.Duration("interval", live.DefaultInterval, "capture interval")
	imageURL := flag.String("url", "", "analyze a remote image once and exit")
	video := flag.String("video", "", "analyze a video file once and exit")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level, TimeFormat: time.Kitchen}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Config{BaseURL: *server}, logger)

	switch {
	case *imageURL != "":
		resp, err := c.AnalyzeImageURL(ctx, *imageURL)
		exitOnError(logger, err)
		printResponse(0, resp)
	case *video != "":
		resp, err := c.AnalyzeVideoFile(ctx, *video)
		exitOnError(logger, err)
		printResponse(0, resp)
	case *snapshot != "":
		watch(ctx, c, *snapshot, *interval, logger)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func watch(ctx context.Context, c *client.Client, path string, interval time.Duration, logger *slog.Logger) {
	sessionID := uuid.NewString()
	logger.Info("watching snapshot", "file", path, "interval", interval, "session_id", sessionID)

	call := func(ctx context.Context, seq uint64) (*client.Response, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return c.AnalyzeLive(ctx, data, sessionID, seq)
	}

	deliver := func(r live.Result[*client.Response]) {
		if r.Err != nil {
			logger.Error("analysis failed", "sequence", r.Sequence, "error", r.Err)
			return
		}
		if r.Value.Stale {
			logger.Debug("server marked result stale", "sequence", r.Sequence)
			return
		}
		printResponse(r.Sequence, r.Value)
	}

	scheduler := live.NewScheduler(live.Config{Interval: interval, Immediate: true}, call, deliver, logger)
	scheduler.Run(ctx)

	stats := scheduler.Stats()
	logger.Info("stopped",
		"fired", stats.Fired,
		"dropped", stats.Dropped,
		"delivered", stats.Delivered)
}

func printResponse(seq uint64, resp *client.Response) {
	out := map[string]any{"sequence": seq}
	if resp.Result != nil {
		out["result"] = resp.Result
	} else {
		out["refusal"] = resp.Refusal
	}
	_ = json.NewEncoder(os.Stdout).Encode(out)
}

func exitOnError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("request failed", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: watch -file snapshot.jpg [-interval 5s] | -url URL | -video FILE\n")
		flag.PrintDefaults()
	}
}
