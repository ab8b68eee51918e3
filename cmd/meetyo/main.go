package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/meetyo/meetyo-web/internal/agent"
	httpapi "github.com/meetyo/meetyo-web/internal/api/http"
	"github.com/meetyo/meetyo-web/internal/config"
	"github.com/meetyo/meetyo-web/internal/geocoding"
	"github.com/meetyo/meetyo-web/internal/scheduler"
	"github.com/meetyo/meetyo-web/internal/store"
	"github.com/meetyo/meetyo-web/internal/weather"
)

func main() {
	// Load configuration (.env first, then the environment).
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Shared HTTP client for outbound calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	geo := geocoding.NewClient(httpClient, geocoding.Options{
		BaseURL:        cfg.GeocoderBaseURL,
		UserAgent:      cfg.GeocoderUserAgent,
		AcceptLanguage: cfg.GeocoderAcceptLanguage,
		RPS:            cfg.GeocoderRPS,
	})
	backend := weather.NewProxy(httpClient, cfg.BackendBaseURL, cfg.WeatherPath)
	chat := agent.NewClient(httpClient, cfg.ChatBaseURL)

	// Keep-alive probes of the weather backend, kept in memory for /health.
	probes := store.NewMemoryStore(cfg.ProbeMaxHistory, cfg.ProbeMaxAge)
	prober := scheduler.NewProber(httpClient, probes)
	sched := scheduler.New([]string{cfg.BackendBaseURL}, cfg.BackendPingInterval, prober)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "meetyo-web",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.HTTPTimeout + 5*time.Second,
		ErrorHandler:          httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	httpapi.RegisterRoutes(app, httpapi.Deps{
		Geo:         geo,
		Weather:     backend,
		Agent:       chat,
		Probes:      probes,
		ProbeTarget: cfg.BackendBaseURL,
	})

	log.Printf("INFO: weather backend %s, geocoder %s", cfg.WeatherURL(), cfg.GeocoderBaseURL)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
