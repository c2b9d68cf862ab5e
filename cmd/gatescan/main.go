package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/totegamma/ticketgate"
	"github.com/totegamma/ticketgate/client"
	"github.com/totegamma/ticketgate/internal/config"
	"github.com/totegamma/ticketgate/internal/infra/database"
	"github.com/totegamma/ticketgate/internal/infra/gateway"
	"github.com/totegamma/ticketgate/internal/infra/registry"
	"github.com/totegamma/ticketgate/internal/infra/repository"
	"github.com/totegamma/ticketgate/internal/usecase"
)

func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to the yaml config")
	flushOnly := pflag.Bool("flush", false, "deliver queued scans once and exit")
	pflag.Parse()

	_ = godotenv.Load()

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	sc := conf.Scanner

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var queue usecase.ScanQueue = repository.NewMemoryQueue()
	if sc.QueueDsn != "" {
		db, err := database.ConnectPostgres(ctx, sc.QueueDsn)
		if err != nil {
			panic("failed to connect queue database")
		}
		if err := database.MigratePostgres(db); err != nil {
			panic("failed to migrate queue database")
		}
		queue = repository.NewQueueRepository(db)
	}

	cl := client.New(sc.ServerURL, sc.DeviceToken)
	ledger := gateway.NewLedgerGateway(cl)
	probe := gateway.NewHealthProbe(cl, config.Duration(sc.HealthTTL, 10*time.Second), 2*time.Second)

	flusher := usecase.NewSyncFlusher(queue, ledger, usecase.FlusherOptions{
		BatchSize:  sc.BatchSize,
		MaxRetries: sc.MaxRetries,
	})

	if *flushOnly {
		report, err := flusher.Flush(ctx)
		ticketgate.JsonPrint(os.Stdout, "flush", report)
		if err != nil {
			slog.Error("flush failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	if sc.EventID == "" {
		panic("scanner.eventID is required")
	}
	window, err := sc.EventWindow()
	if err != nil {
		panic(err)
	}

	var salts usecase.SaltProvider = usecase.StaticSalt(conf.Ticket.SecretSalt)
	if conf.Ticket.MasterKey != "" {
		salts = usecase.NewDerivedSalt([]byte(conf.Ticket.MasterKey))
	}
	salt, err := salts.SaltFor(sc.EventID)
	if err != nil {
		panic(err)
	}

	domainConf := conf.Domain()
	verifier := usecase.NewVerifier(registry.NewMemory(), usecase.VerifierOptions{
		HashPrefixLength: domainConf.HashPrefixLength,
		EarlyWindow:      domainConf.EarlyWindow,
		LateWindow:       domainConf.LateWindow,
	})

	var direct usecase.Sink
	if sc.ServerURL != "" {
		direct = usecase.NewDirectSink(ledger)
	}

	session := usecase.NewScannerSession(
		verifier,
		direct,
		usecase.NewQueueingSink(queue),
		probe,
		usecase.SessionOptions{
			DeviceID:   sc.DeviceID,
			EventID:    sc.EventID,
			SecretSalt: salt,
			Window:     window,
		},
	)

	if sc.ServerURL != "" {
		session.WithRemote(cl)
		go flusher.Run(ctx, config.Duration(sc.FlushInterval, 30*time.Second), probe)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			raw := strings.TrimSpace(line)
			if raw == "" {
				continue
			}
			record, err := session.Scan(ctx, raw)
			if err != nil {
				slog.Error("scan failed", slog.String("error", err.Error()), slog.String("module", "gatescan"))
				continue
			}
			fmt.Printf("%s %s\n", record.Status, record.Message)
			ticketgate.JsonPrint(os.Stderr, "record", record)
		}
	}
}
