package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"sessionbook/backend/internal/cache"
	"sessionbook/backend/internal/calendar/google"
	"sessionbook/backend/internal/config"
	"sessionbook/backend/internal/events"
	"sessionbook/backend/internal/notify/email"
	"sessionbook/backend/internal/obs"
	"sessionbook/backend/internal/receipt"
	"sessionbook/backend/internal/service/availability"
	"sessionbook/backend/internal/service/booking"
	"sessionbook/backend/internal/service/notifications"
	"sessionbook/backend/internal/store/postgres"
	grpcTransport "sessionbook/backend/internal/transport/grpc"
	httpTransport "sessionbook/backend/internal/transport/http"
)

const serviceName = "sessionbook-server"

var version = "dev"

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(log)

	if err := run(log, cfg); err != nil {
		log.Error("server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(log *slog.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("log_level", cfg.LogLevel),
		slog.String("clinic_timezone", cfg.ClinicLocation.String()),
	)

	shutdownTracer, err := obs.InitTracer(ctx, obs.Config{
		Endpoint:    cfg.TracingEndpoint,
		Insecure:    cfg.TracingInsecure,
		ServiceName: serviceName,
		Version:     version,
		Environment: cfg.Environment,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			log.Warn("tracer shutdown failed", slog.Any("err", err))
		}
	}()

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return err
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	availabilityRepo := postgres.NewAvailabilityRepo(db)
	bookingRepo := postgres.NewBookingRepo(db)
	directory := postgres.NewDirectoryRepo(db)

	availabilityOpts := availability.Options{
		Location:        cfg.ClinicLocation,
		Logger:          log,
		CalendarTimeout: cfg.CollaboratorTimeout,
	}
	var collab booking.Collaborators

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, view cache will miss", slog.Any("err", err))
		}
		views := cache.NewViews(rdb, cfg.ViewCacheTTL)
		availabilityOpts.Cache = views
		collab.Views = views
	}

	if cfg.SMTPHost != "" {
		collab.Notifier = email.NewNotifier(email.Config{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.SMTPUsername,
			Password:  cfg.SMTPPassword,
			From:      cfg.SMTPFrom,
			LocalName: cfg.SMTPLocalName,
		}, cfg.ClinicLocation, cfg.TimeStyle, log)
	}

	if cfg.CalendarCredentialsFile != "" {
		meetings, err := google.NewMeetingCreator(ctx, google.Config{
			CredentialsFile: cfg.CalendarCredentialsFile,
			CalendarID:      cfg.CalendarID,
		}, cfg.ClinicLocation)
		if err != nil {
			return err
		}
		collab.Meetings = meetings

		busy, err := google.NewBusyReader(ctx, google.Config{CredentialsFile: cfg.CalendarCredentialsFile}, cfg.ClinicLocation)
		if err != nil {
			return err
		}
		availabilityOpts.Calendar = busy
	}

	if cfg.ReceiptBucket != "" {
		uploader, err := receipt.NewS3Uploader(ctx, receipt.S3Config{
			Bucket:    cfg.ReceiptBucket,
			Region:    cfg.ReceiptRegion,
			Endpoint:  cfg.ReceiptEndpoint,
			PathStyle: cfg.ReceiptPathStyle,
		})
		if err != nil {
			return err
		}
		collab.Receipts = receipt.NewIssuer(receipt.NewRenderer("", cfg.ClinicLocation, cfg.TimeStyle), uploader, nil)
	}

	var publisher *events.Publisher
	if cfg.RabbitURL != "" {
		publisher, err = events.NewPublisher(cfg.RabbitURL, cfg.BookingExchange)
		if err != nil {
			return err
		}
		defer func() { _ = publisher.Close() }()
		collab.Events = publisher
	}

	availabilitySvc := availability.NewService(availabilityRepo, bookingRepo, directory, availabilityOpts)
	checker := availability.NewChecker(availabilityRepo, bookingRepo)
	bookingSvc := booking.NewService(bookingRepo, availabilityRepo, checker, directory, collab, booking.Options{
		Location:            cfg.ClinicLocation,
		Logger:              log,
		CollaboratorTimeout: cfg.CollaboratorTimeout,
	})
	notificationSvc := notifications.NewService(postgres.NewNotificationRepo(db))

	// Any server or the payment listener stopping ends the process.
	errCh := make(chan error, 3)

	if publisher != nil {
		consumer, err := events.NewConsumer(cfg.RabbitURL, cfg.PaymentExchange, cfg.PaymentQueue, []string{events.PaymentPaidKey})
		if err != nil {
			return err
		}
		defer func() { _ = consumer.Close() }()
		listener := events.NewPaymentListener(consumer, bookingSvc, publisher, log)
		go func() {
			if err := listener.Run(ctx); err != nil {
				log.Error("payment listener stopped", slog.Any("err", err))
				errCh <- err
			}
		}()
	}

	gin.SetMode(gin.ReleaseMode)
	router := httpTransport.NewRouter(httpTransport.Services{
		Availability:  availabilitySvc,
		Slots:         checker,
		Bookings:      bookingSvc,
		Notifications: notificationSvc,
	}, httpTransport.Options{
		Logger:         log,
		Style:          cfg.TimeStyle,
		RequestTimeout: cfg.HTTPRequestTimeout,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
		CORSOrigins:    cfg.CORSOrigins,
		Auth:           httpTransport.NewAuthenticator(cfg.JWTSecret),
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpcTransport.NewServer(cfg.GRPCRequestTimeout)
	health := grpcTransport.NewHealthReporter(cfg.HealthInterval, log, grpcTransport.Check{
		Name: "database",
		Run:  func(ctx context.Context) error { return postgres.Ping(ctx, db) },
	})
	health.Register(grpcServer)
	go health.Run(ctx)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		return err
	}

	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	log.Info("servers started", slog.String("http_addr", cfg.HTTPAddr), slog.String("grpc_addr", cfg.GRPCAddr()))

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped with error", slog.Any("err", err))
			serveErr = err
		}
	}
	stop()
	shutdown(log, httpServer, grpcServer, cfg.ShutdownTimeout)
	return serveErr
}

func shutdown(log *slog.Logger, hs *http.Server, gs *grpc.Server, timeout time.Duration) {
	log.Info("shutting down servers", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := hs.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed; closing", slog.Any("err", err))
		_ = hs.Close()
	}

	done := make(chan struct{})
	go func() {
		gs.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		gs.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
