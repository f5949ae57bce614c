package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/DevBasitali/swiftride-mobile-sub000/internal/auth"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/booking"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/config"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/geo"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/handover"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/httpapi"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/hub"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/ingest"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/logging"
	"github.com/DevBasitali/swiftride-mobile-sub000/internal/payments"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	if cfg.PGDSN != "" && cfg.RunMigrations {
		runMigrations(cfg.PGDSN)
	}

	var bookingStore booking.Store
	var recordStore handover.RecordStore
	if cfg.PGDSN != "" {
		ps, err := booking.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		bookingStore = ps
		db, err := sql.Open("postgres", cfg.PGDSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		recordStore = handover.NewPostgresRecordStore(db)
	} else {
		bookingStore = booking.NewMemoryStore()
		recordStore = handover.NewMemoryRecordStore()
	}

	var deposits booking.Deposits
	if os.Getenv("STRIPE_API_KEY") != "" {
		deposits = payments.NewStripeDeposits()
	}
	bookings := booking.NewService(bookingStore, deposits, logger)

	var tokens handover.TokenStore
	var lastKnown geo.LastKnown
	if cfg.RedisAddr != "" {
		tokens = handover.NewRedisTokenStore(cfg.RedisAddr, cfg.RedisPassword, 0)
		lastKnown = geo.NewRedisLastKnown(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		tokens = handover.NewMemoryTokenStore()
		lastKnown = geo.NewMemoryLastKnown()
	}

	// tracking sessions run on the devices; the server has no coordinator
	verifier := handover.NewVerifier(nil, tokens, recordStore, bookings, nil, logger)

	var kafka *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kafka = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafka.Close()
	}

	roomHub := hub.NewRoomHub(logger)
	authMgr := auth.NewManager(cfg.JWTSecret, 0)

	srv := httpapi.NewServer(bookings, verifier, roomHub, kafka, lastKnown, authMgr, logger)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("swiftride api listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}

func runMigrations(dsn string) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Printf("migration db open error: %v", err)
		return
	}
	defer db.Close()
	files := []string{"001_create_bookings.sql", "002_create_handover_records.sql"}
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join("migrations", f))
		if err != nil {
			log.Printf("migration read error: %v", err)
			continue
		}
		if _, err := db.Exec(string(b)); err != nil {
			log.Printf("migration exec error (%s): %v", f, err)
		} else {
			log.Printf("migration applied: %s", f)
		}
	}
}
