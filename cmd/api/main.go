package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/kondate/lunch-orders/internal/config"
	"github.com/kondate/lunch-orders/internal/httpx"
	kafkax "github.com/kondate/lunch-orders/internal/kafka"
	"github.com/kondate/lunch-orders/internal/menus"
	"github.com/kondate/lunch-orders/internal/orders"
	"github.com/kondate/lunch-orders/internal/postgres"
	"github.com/kondate/lunch-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.ServiceName).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per lifecycle topic
	pCreated := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, logger)
	pCreated.Start(ctx)
	pModified := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderModified, 1024, logger)
	pModified.Start(ctx)
	pCancelled := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCancelled, 1024, logger)
	pCancelled.Start(ctx)

	sink := &kafkax.OrderEventSink{
		Created:   pCreated,
		Modified:  pModified,
		Cancelled: pCancelled,
		Service:   cfg.ServiceName,
	}

	// Stores and service
	svc := &orders.Service{
		Menus:    &menus.CachedReader{Source: &menus.Repo{DB: db}, Redis: rdb},
		Store:    &orders.Repo{DB: db},
		Seq:      &orders.SequenceRepo{DB: db, Log: logger},
		Events:   sink,
		Profiles: &redisx.ProfileCache{Redis: rdb},
		Log:      logger,
	}

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{Service: svc, Redis: rdb, Log: logger}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	// close inboxes -> flush & close writers
	pCreated.Close()
	pModified.Close()
	pCancelled.Close()
	cancel()
	pCreated.WaitClosed()
	pModified.WaitClosed()
	pCancelled.WaitClosed()
}
