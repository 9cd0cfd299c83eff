package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lampaBiurkowa/spin-snowball/internal/mapdoc"
	servernet "github.com/lampaBiurkowa/spin-snowball/internal/net"
	"github.com/lampaBiurkowa/spin-snowball/internal/observability"
	"github.com/lampaBiurkowa/spin-snowball/internal/server"
	"github.com/lampaBiurkowa/spin-snowball/internal/sim"
	"github.com/lampaBiurkowa/spin-snowball/internal/telemetry"
	"github.com/lampaBiurkowa/spin-snowball/logging"
	loggingSinks "github.com/lampaBiurkowa/spin-snowball/logging/sinks"
)

const defaultAddr = ":9001"

// Config carries the startup parameters resolved from flags.
type Config struct {
	Addr      string
	MapPath   string
	ClientDir string
	Logger    telemetry.Logger
}

// NewLogger builds the process logger. When LOG_FILE is set output rotates
// through lumberjack, otherwise it goes to stdout.
func NewLogger() (telemetry.Logger, func()) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encoderCfg)

	var sink zapcore.WriteSyncer
	if path := os.Getenv("LOG_FILE"); path != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
		})
	} else {
		sink = zapcore.AddSync(os.Stdout)
	}

	core := zapcore.NewCore(encoder, sink, zapcore.InfoLevel)
	logger := zap.New(core)
	return telemetry.WrapZap(logger.Sugar()), func() { _ = logger.Sync() }
}

// Run starts the simulation and serves the HTTP surface until ctx is done.
func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		var flush func()
		logger, flush = NewLogger()
		defer flush()
	}

	addr := cfg.Addr
	if addr == "" {
		addr = defaultAddr
	}
	mapPath := cfg.MapPath
	if mapPath == "" {
		mapPath = "default_map.json"
	}

	doc, err := mapdoc.Load(mapPath)
	if err != nil {
		return fmt.Errorf("load map %s: %w", mapPath, err)
	}

	logConfig := logging.DefaultConfig()
	if path := os.Getenv("EVENT_LOG_FILE"); path != "" {
		logConfig.JSON.FilePath = path
	}
	namedSinks := []logging.NamedSink{
		{Name: "console", Sink: loggingSinks.NewConsoleSink(os.Stdout)},
	}
	if logConfig.JSON.FilePath != "" {
		file, err := os.OpenFile(logConfig.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Printf("cannot open event log %s: %v", logConfig.JSON.FilePath, err)
		} else {
			namedSinks = append(namedSinks, logging.NamedSink{
				Name: "json",
				Sink: loggingSinks.NewJSON(file, logConfig.JSON.FlushInterval),
			})
		}
	}
	router, err := logging.NewRouter(logging.SystemClock{}, logConfig, namedSinks)
	if err != nil {
		return fmt.Errorf("construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	hubCfg := server.DefaultHubConfig()
	if raw := os.Getenv("KEYFRAME_INTERVAL_TICKS"); raw != "" {
		if value, err := strconv.ParseUint(raw, 10, 64); err == nil {
			hubCfg.KeyframeIntervalTicks = value
		} else {
			logger.Printf("invalid KEYFRAME_INTERVAL_TICKS=%q: %v", raw, err)
		}
	}
	if raw := os.Getenv("TICK_RATE"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			hubCfg.TickRate = value
		} else {
			logger.Printf("invalid TICK_RATE=%q: %v", raw, err)
		}
	}
	if raw := os.Getenv("SEED"); raw != "" {
		if value, err := strconv.ParseInt(raw, 10, 64); err == nil {
			hubCfg.Seed = value
		} else {
			logger.Printf("invalid SEED=%q: %v", raw, err)
		}
	}

	hub := server.NewHub(doc, hubCfg, sim.Deps{
		Logger:  logger,
		Metrics: telemetry.NewCounters(),
		Clock:   logging.SystemClock{},
	}, router)
	if hub == nil {
		return fmt.Errorf("construct hub for map %s", doc.Name)
	}

	stop := make(chan struct{})
	go hub.Run(stop)
	defer close(stop)

	var obs observability.Config
	if raw := os.Getenv("ENABLE_PPROF_TRACE"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			obs.EnablePprofTrace = value
		} else {
			logger.Printf("invalid ENABLE_PPROF_TRACE=%q: %v", raw, err)
		}
	}

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		ClientDir:     cfg.ClientDir,
		Logger:        logger,
		Observability: obs,
	})

	srv := &http.Server{Addr: addr, Handler: handler}
	logger.Printf("serving map %q on %s at %d ticks per second", doc.Name, addr, hubCfg.TickRate)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}
