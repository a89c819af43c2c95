package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/augmenta-tech/augmenta-receiver/internal/config"
	"github.com/augmenta-tech/augmenta-receiver/internal/dispatcher"
	"github.com/augmenta-tech/augmenta-receiver/internal/engine"
	"github.com/augmenta-tech/augmenta-receiver/internal/influx"
	"github.com/augmenta-tech/augmenta-receiver/internal/logging"
	"github.com/augmenta-tech/augmenta-receiver/internal/monitor"
	intOtel "github.com/augmenta-tech/augmenta-receiver/internal/otel"
	"github.com/augmenta-tech/augmenta-receiver/internal/protocol"
	"github.com/augmenta-tech/augmenta-receiver/internal/registry"
	"github.com/augmenta-tech/augmenta-receiver/internal/session"
	"github.com/augmenta-tech/augmenta-receiver/internal/storage"
	"github.com/augmenta-tech/augmenta-receiver/internal/transport"
	"github.com/augmenta-tech/augmenta-receiver/internal/worker"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"golang.org/x/sync/errgroup"
)

// set at build time via ldflags
var (
	Version   = "0.0.1"
	BuildDate = "unknown"
)

const name = "augmenta-receiver"

// receiver holds every long-lived component of the host process.
type receiver struct {
	start time.Time

	slogManager *logging.SlogManager
	logger      *slog.Logger
	dbLogger    zerolog.Logger
	logFile     *os.File
	graylog     *logging.GraylogSink
	otel        *intOtel.Provider

	session  *session.Context
	decoder  *protocol.Decoder
	registry *registry.Registry
	worker   *worker.Manager
	engine   *engine.Engine
	osc      *transport.Receiver
	live     liveSettings

	backend       storage.Backend
	recorder      *storage.Recorder
	metrics       *influx.Manager
	detachMetrics func()
	monitor       *monitor.Service
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := config.Flags(name)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	configDir, _ := fs.GetString("config-dir")
	loadErr := config.Load(configDir)
	if loadErr != nil && !config.IsNotFound(loadErr) {
		return loadErr
	}
	if err := config.BindFlags(fs); err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	r := &receiver{start: time.Now(), session: session.NewContext()}
	if err := r.setupLogging(); err != nil {
		return err
	}
	defer r.closeLogging()

	if loadErr != nil {
		r.logger.Warn("No config file found, using defaults", "dir", configDir)
	} else {
		r.logger.Info("Loaded config", "dir", configDir)
	}
	r.logger.Info("Starting up", "version", Version, "build", BuildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := r.setupPipeline(); err != nil {
		return err
	}
	if err := r.startSession(ctx); err != nil {
		return err
	}

	err := r.serve(ctx, loadErr == nil)
	r.shutdown()
	return err
}

func (r *receiver) setupLogging() error {
	f, logPath, err := logging.OpenLogFile(config.GetString("logsDir"), name, r.start)
	if err != nil {
		return err
	}
	r.logFile = f

	r.slogManager = logging.NewSlogManager()

	var extra []slog.Handler
	var gelfErr error
	if config.GetBool("graylog.enabled") {
		r.graylog, gelfErr = logging.NewGraylogSink(config.GetString("graylog.address"), name)
		if gelfErr == nil {
			extra = append(extra, r.graylog.Handler(r.slogManager.HandlerOptions()))
		}
	}

	var otelErr error
	var logProvider *sdklog.LoggerProvider
	if oc := config.GetOTelConfig(); oc.Enabled {
		r.otel, otelErr = intOtel.New(context.Background(), intOtel.Config{
			Enabled:        oc.Enabled,
			ServiceName:    oc.ServiceName,
			ServiceVersion: Version,
			BatchTimeout:   oc.BatchTimeout,
			LogWriter:      f,
			Endpoint:       oc.Endpoint,
			Insecure:       oc.Insecure,
		})
		if otelErr == nil {
			logProvider = r.otel.LoggerProvider()
		}
	}

	r.slogManager.Setup(f, config.GetString("logLevel"), logProvider, extra...)
	r.logger = r.slogManager.WithContext(r.session.Attrs, r.muteAttrs)
	slog.SetDefault(r.logger)

	if gelfErr != nil {
		r.logger.Error("Failed to set up Graylog sink", "error", gelfErr)
	}
	if otelErr != nil {
		r.logger.Error("Failed to initialize OTel provider", "error", otelErr)
	}

	// the persistence and metrics managers log through zerolog
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	writers := []io.Writer{zerolog.ConsoleWriter{Out: f, TimeFormat: time.RFC3339, NoColor: true}}
	if r.graylog != nil {
		writers = append(writers, r.graylog.Writer())
	}
	r.dbLogger = zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(zerologLevel(r.slogManager.Level())).With().Timestamp().Logger()

	r.logger.Info("Logging to file", "path", logPath)
	return nil
}

// muteAttrs flags records logged while ingress is muted.
func (r *receiver) muteAttrs() []slog.Attr {
	if r.worker != nil && r.worker.Muted() {
		return []slog.Attr{slog.Bool("muted", true)}
	}
	return nil
}

func zerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l <= slog.LevelDebug:
		return zerolog.DebugLevel
	case l <= slog.LevelInfo:
		return zerolog.InfoLevel
	case l <= slog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (r *receiver) closeLogging() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.slogManager.Flush(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to flush logs: %v\n", err)
	}
	if r.otel != nil {
		_ = r.otel.Shutdown(ctx)
	}
	if r.graylog != nil {
		_ = r.graylog.Close()
	}
	_ = r.logFile.Close()
}

// setupPipeline builds decoder, registry, dispatcher, worker and engine.
func (r *receiver) setupPipeline() error {
	rc := config.GetReceiverConfig()
	r.live = currentSettings()

	version, err := protocol.ParseVersion(rc.Version)
	if err != nil {
		return err
	}
	policy, err := rc.SelectionPolicy()
	if err != nil {
		return err
	}

	r.decoder, err = protocol.NewDecoder(protocol.Options{Version: version, Flips: rc.Flips(), PixelSize: rc.PixelSize})
	if err != nil {
		return err
	}

	r.registry = registry.New(registry.Config{
		Timeout:      rc.Timeout,
		Policy:       policy,
		FlushOnClose: rc.FlushOnClose,
		Logger:       r.logger,
	})

	d, err := dispatcher.New(logging.NewZerologAdapter(r.dbLogger))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	r.worker = worker.NewManager(worker.Dependencies{Registry: r.registry, Decoder: r.decoder, Logger: r.logger})
	r.worker.SetMute(rc.Mute)
	r.worker.RegisterHandlers(d)

	r.engine, err = engine.New(engine.Config{
		TickRate:  float64(rc.TickRate),
		InboxSize: rc.InboxSize,
		Logger:    r.logger,
	}, r.worker, r.registry)
	if err != nil {
		return err
	}

	r.osc = transport.NewReceiver(transport.ReceiverConfig{
		Host:       rc.Host,
		Port:       rc.Port,
		ReadBuffer: rc.ReadBuffer,
		Logger:     r.logger,
	})

	r.logger.Info("Pipeline ready",
		"protocol", version.String(),
		"policy", policy.String(),
		"timeout", rc.Timeout,
		"tickRate", rc.TickRate)
	return nil
}

func (r *receiver) startSession(ctx context.Context) error {
	rc := config.GetReceiverConfig()
	s, err := r.session.Start(session.Params{
		ProtocolVersion: rc.Version,
		Port:            rc.Port,
		Policy:          rc.Policy,
		PolicyCount:     rc.Count,
		Settings:        r.live.Map(),
	})
	if err != nil {
		return err
	}
	r.logger.Info("Session started", "id", s.ID)

	if err := r.setupStorage(&s); err != nil {
		return err
	}
	r.setupMetrics(ctx)

	var sinks []monitor.Sink
	if r.metrics != nil {
		sinks = append(sinks, r.metrics)
	}
	if sr, ok := r.backend.(storage.StatusRecorder); ok {
		sinks = append(sinks, sr)
	}
	r.monitor = monitor.NewService(monitor.Dependencies{
		Engine:     r.engine,
		Registry:   r.registry,
		Worker:     r.worker,
		Session:    r.session,
		Logger:     r.logger,
		Interval:   config.GetDuration("monitor.interval"),
		Scaling:    config.GetReceiverConfig().Scaling,
		StatusFile: filepath.Join(config.GetString("logsDir"), "status.json"),
		Sinks:      sinks,
	})
	return nil
}

func (r *receiver) setupMetrics(ctx context.Context) {
	ic := config.GetInfluxConfig()
	if !ic.Enabled {
		return
	}
	r.metrics = influx.NewManager(r.dbLogger, ic, influx.BackupFileName(ic.BackupDir, r.start))
	if err := r.metrics.Connect(ctx); err != nil {
		r.logger.Error("Failed to set up InfluxDB sink", "error", err)
		r.metrics = nil
		return
	}
	r.detachMetrics = r.metrics.Attach(r.registry, r.session.ID)
}

// serve runs the OSC receiver and the host loop until ctx is done. With
// watch set, edits to the config file are applied live.
func (r *receiver) serve(ctx context.Context, watch bool) error {
	if err := r.osc.Listen(); err != nil {
		// the host keeps running; a later config change may rebind
		r.logger.Error("Failed to bind OSC port", "port", r.live.Port, "error", err)
	} else {
		r.logger.Info("Listening for OSC", "addr", r.osc.Addr().String())
	}

	if watch {
		config.Watch(r.reload)
	}

	// the engine outlives the transport so no message reaches a closed registry
	engineCtx, stopEngine := context.WithCancel(context.WithoutCancel(ctx))
	defer stopEngine()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stopEngine()
		err := r.osc.Serve(gctx, r.engine.Enqueue)
		if errors.Is(err, net.ErrClosed) && gctx.Err() != nil {
			return nil
		}
		return err
	})
	g.Go(func() error {
		return r.engine.Run(engineCtx)
	})
	if err := r.monitor.Start(gctx); err != nil {
		r.logger.Warn("Failed to start status monitor", "error", err)
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Error("Receiver stopped", "error", err)
		return err
	}
	if n := r.engine.Late(); n > 0 {
		r.logger.Warn("Messages arrived after the engine stopped", "count", n)
	}
	r.logger.Info("Receiver stopped")
	return nil
}

// shutdown runs after the engine has stopped: the registry is closed and
// its flush events have already reached the recorder.
func (r *receiver) shutdown() {
	if r.monitor != nil {
		r.monitor.Stop()
	}
	if r.detachMetrics != nil {
		r.detachMetrics()
	}
	_ = r.osc.Close()

	r.finishSession()

	if r.metrics != nil {
		if err := r.metrics.Close(); err != nil {
			r.logger.Warn("Failed to close InfluxDB sink", "error", err)
		}
	}
}
