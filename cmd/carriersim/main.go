// Package main implements carriersim, a stand-in for a remote carrier's
// quoting service. quoted talks to it through provider.HTTPCarrier when a
// provider of kind "http" points at it.
//
// The simulator prices every request as a flat fee plus a per-kg rate and
// can be told to answer slowly or to fail a share of requests, which makes
// the timeout and partial-failure paths of the quote engine observable in a
// local setup.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│               carriersim                │
//	├─────────────────────────────────────────┤
//	│  HTTP API:                              │
//	│    POST /quote   - Price a shipment     │
//	│    GET  /health  - Probe endpoint       │
//	├─────────────────────────────────────────┤
//	│  Behaviour:                             │
//	│    latency       - Delay every answer   │
//	│    fail rate     - Share answered 503   │
//	└─────────────────────────────────────────┘
//
// Configuration:
//   - CARRIER_LISTEN: Listen address (default: ":9001")
//   - CARRIER_PRICE: Flat fee per shipment (default: "40")
//   - CARRIER_PER_KG: Rate per kg (default: "2.5")
//   - CARRIER_MIN_DAYS / CARRIER_MAX_DAYS: Transit range (default: 2 and 4)
//   - CARRIER_MODE: Transport mode (default: "road")
//   - CARRIER_LATENCY: Delay before answering, e.g. "750ms" (default: "0s")
//   - CARRIER_FAIL_RATE: Probability in [0,1] of a 503 (default: "0")
//
// Example usage:
//
//	CARRIER_LISTEN=:9001 CARRIER_LATENCY=6s ./carriersim
//
//	curl -X POST localhost:9001/quote \
//	  -H 'Content-Type: application/json' \
//	  -d '{"weightKg":12.5,"destination":"Madrid"}'
package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/dreamware/shipquote/internal/provider"
)

// logFatal is a variable so tests can intercept fatal configuration errors.
var logFatal = log.Fatalf

// carrier holds the simulated pricing and failure behaviour.
type carrier struct {
	random   func() float64 // Source for failure draws, in [0,1)
	price    decimal.Decimal
	perKg    decimal.Decimal
	currency string
	mode     string
	minDays  int
	maxDays  int
	latency  time.Duration
	failRate float64
}

// carrierFromEnv reads the CARRIER_* variables.
func carrierFromEnv() (*carrier, error) {
	price, err := decimal.NewFromString(getenv("CARRIER_PRICE", "40"))
	if err != nil {
		return nil, fmt.Errorf("CARRIER_PRICE: %w", err)
	}
	perKg, err := decimal.NewFromString(getenv("CARRIER_PER_KG", "2.5"))
	if err != nil {
		return nil, fmt.Errorf("CARRIER_PER_KG: %w", err)
	}
	minDays, err := strconv.Atoi(getenv("CARRIER_MIN_DAYS", "2"))
	if err != nil {
		return nil, fmt.Errorf("CARRIER_MIN_DAYS: %w", err)
	}
	maxDays, err := strconv.Atoi(getenv("CARRIER_MAX_DAYS", "4"))
	if err != nil {
		return nil, fmt.Errorf("CARRIER_MAX_DAYS: %w", err)
	}
	latency, err := time.ParseDuration(getenv("CARRIER_LATENCY", "0s"))
	if err != nil {
		return nil, fmt.Errorf("CARRIER_LATENCY: %w", err)
	}
	failRate, err := strconv.ParseFloat(getenv("CARRIER_FAIL_RATE", "0"), 64)
	if err != nil || failRate < 0 || failRate > 1 {
		return nil, fmt.Errorf("CARRIER_FAIL_RATE must be within [0,1], got %q", os.Getenv("CARRIER_FAIL_RATE"))
	}
	if minDays < 0 || minDays > maxDays {
		return nil, fmt.Errorf("invalid transit range %d-%d", minDays, maxDays)
	}

	return &carrier{
		random:   rand.Float64,
		price:    price,
		perKg:    perKg,
		currency: getenv("CARRIER_CURRENCY", "EUR"),
		mode:     getenv("CARRIER_MODE", "road"),
		minDays:  minDays,
		maxDays:  maxDays,
		latency:  latency,
		failRate: failRate,
	}, nil
}

func main() {
	c, err := carrierFromEnv()
	if err != nil {
		logFatal("config: %v", err)
	}
	listen := getenv("CARRIER_LISTEN", ":9001")
	app := newApp(c)

	go func() {
		log.Infof("carriersim listening on %s (latency %v, fail rate %.2f)", listen, c.latency, c.failRate)
		if err := app.Listen(listen); err != nil {
			logFatal("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	_ = app.ShutdownWithTimeout(5 * time.Second)
	log.Info("carriersim stopped")
}

func newApp(c *carrier) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Post("/quote", c.handleQuote)
	app.Get("/health", c.handleHealth)
	return app
}

// handleQuote prices the shipment after the configured latency. A failure
// draw answers 503 instead.
func (c *carrier) handleQuote(ctx *fiber.Ctx) error {
	var req provider.CarrierQuoteRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if !(req.WeightKg > 0) {
		return fiber.NewError(fiber.StatusBadRequest, "weightKg must be positive")
	}

	if c.latency > 0 {
		time.Sleep(c.latency)
	}
	if c.failRate > 0 && c.random() < c.failRate {
		return fiber.NewError(fiber.StatusServiceUnavailable, "carrier busy")
	}

	amount, _ := c.price.Add(c.perKg.Mul(decimal.NewFromFloat(req.WeightKg))).Round(2).Float64()
	return ctx.JSON(provider.CarrierQuoteResponse{
		Currency:      c.currency,
		TransportMode: c.mode,
		Price:         amount,
		MinDays:       c.minDays,
		MaxDays:       c.maxDays,
	})
}

// handleHealth reports unavailable when every request would fail.
func (c *carrier) handleHealth(ctx *fiber.Ctx) error {
	if c.failRate >= 1 {
		return ctx.SendStatus(fiber.StatusServiceUnavailable)
	}
	return ctx.SendStatus(fiber.StatusOK)
}

// getenv retrieves an environment variable with a fallback default value.
//
// Example:
//
//	listen := getenv("CARRIER_LISTEN", ":9001")
//	// Returns $CARRIER_LISTEN if set, otherwise ":9001"
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
