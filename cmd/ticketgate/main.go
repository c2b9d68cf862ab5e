package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/totegamma/ticketgate/client"
	"github.com/totegamma/ticketgate/internal/config"
	"github.com/totegamma/ticketgate/internal/infra/anchor"
	"github.com/totegamma/ticketgate/internal/infra/database"
	"github.com/totegamma/ticketgate/internal/infra/registry"
	"github.com/totegamma/ticketgate/internal/infra/render"
	"github.com/totegamma/ticketgate/internal/infra/repository"
	"github.com/totegamma/ticketgate/internal/present/rest"
	restmw "github.com/totegamma/ticketgate/internal/present/rest/middleware"
	"github.com/totegamma/ticketgate/internal/service"
	"github.com/totegamma/ticketgate/internal/usecase"
)

func setupTraceProvider(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", "ticketgate"),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.1))),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to the yaml config")
	deviceName := pflag.String("issue-device-token", "", "enroll a scanner device with this name, print its token and exit")
	deviceEvents := pflag.StringSlice("events", nil, "events the enrolled device may sync (with --issue-device-token)")
	issuerName := pflag.String("issue-issuer-token", "", "print an issuer token with this name and exit")
	pflag.Parse()

	_ = godotenv.Load()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Server.EnableTrace {
		shutdown, err := setupTraceProvider(ctx, conf.Server.TraceEndpoint)
		if err != nil {
			panic(err)
		}
		defer shutdown(context.Background())
	}

	db, err := database.ConnectPostgres(ctx, conf.Server.PostgresDsn)
	if err != nil {
		panic("failed to connect database")
	}
	err = database.MigratePostgres(db)
	if err != nil {
		panic("failed to migrate database")
	}

	domainConf := conf.Domain()

	if conf.Auth.DeviceSecret == "" {
		panic("auth.deviceSecret is required")
	}
	devices := repository.NewDeviceRepository(db)
	authService := service.NewAuthService(&domainConf, []byte(conf.Auth.DeviceSecret), devices)

	if *deviceName != "" {
		ttl := config.Duration(conf.Auth.TokenTTL, 0)
		token, device, err := authService.IssueDeviceToken(ctx, *deviceName, *deviceEvents, ttl)
		if err != nil {
			panic(err)
		}
		fmt.Printf("device %s (%s)\n%s\n", device.ID, strings.Join(device.Events, ","), token)
		return
	}
	if *issuerName != "" {
		token, err := authService.IssueIssuerToken(ctx, *issuerName, config.Duration(conf.Auth.TokenTTL, 0))
		if err != nil {
			panic(err)
		}
		fmt.Println(token)
		return
	}

	var stores usecase.UsedTicketStoreFactory
	var stream rest.ScanStream
	var publisher usecase.ScanPublisher

	if conf.Server.RedisAddr != "" {
		rdb := database.NewRedis(conf.Server.RedisAddr, conf.Server.RedisPassword, conf.Server.RedisDB)
		if err := database.PingRedis(ctx, rdb); err != nil {
			panic("failed to connect redis")
		}
		signalService := service.NewSignalService(rdb)
		stream = signalService
		publisher = signalService
		if conf.Server.Registry == "redis" {
			stores = registry.RedisFactory(rdb)
		}
	}

	switch conf.Server.Registry {
	case "memcached":
		stores = registry.MemcachedFactory(database.NewMemcached(conf.Server.MemcachedAddr))
	case "postgres":
		stores = registry.PostgresFactory(db)
	case "memory":
		stores = registry.NewMemoryFactory().For
	}
	if stores == nil {
		panic("server.registry redis requires server.redisAddr")
	}

	var salts usecase.SaltProvider = usecase.StaticSalt(conf.Ticket.SecretSalt)
	if conf.Ticket.MasterKey != "" {
		salts = usecase.NewDerivedSalt([]byte(conf.Ticket.MasterKey))
	}

	var receipts anchor.ReceiptFetcher
	if conf.Server.EthereumRPC != "" {
		eth, err := anchor.Dial(conf.Server.EthereumRPC)
		if err != nil {
			panic(err)
		}
		receipts = eth
	}
	anchors := anchor.NewEthereumValidator(conf.Server.AnchorChain, receipts)

	ledgerRepo := repository.NewLedgerRepository(db)
	ledger := usecase.NewPublishingLedger(ledgerRepo, publisher)

	issuer := usecase.NewIssuer(
		render.NewQREncoder(conf.Ticket.QRSize),
		render.NewPDFRenderer(),
		client.New("", ""),
		anchors,
		usecase.IssuerOptions{HashPrefixLength: domainConf.HashPrefixLength},
	)

	gate := usecase.NewGate(stores, salts, ledger, ledgerRepo, repository.NewEventRepository(db), usecase.VerifierOptions{
		HashPrefixLength: domainConf.HashPrefixLength,
		EarlyWindow:      domainConf.EarlyWindow,
		LateWindow:       domainConf.LateWindow,
	})

	handler := rest.NewHandler(domainConf, issuer, salts, gate, stream)

	e := echo.New()
	e.HideBanner = true
	e.Use(otelecho.Middleware("ticketgate"))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	handler.RegisterRoutes(e, restmw.NewAuthMiddleware(authService))

	go func() {
		if err := e.Start(conf.Server.ListenAddr); err != nil && err != http.ErrServerClosed {
			slog.Error("server stopped", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", slog.String("error", err.Error()))
	}
}
