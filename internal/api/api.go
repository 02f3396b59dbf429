// Package api exposes the quote engine over HTTP with fiber.
//
//	POST /quotes  request quotes for a shipment
//	GET  /status  provider health snapshot
//	GET  /health  liveness
package api

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/dreamware/shipquote/internal/health"
	"github.com/dreamware/shipquote/internal/quote"
)

// DefaultRetryAfter is the retry hint sent when no provider could quote.
const DefaultRetryAfter = 30 * time.Second

// Quoter computes quotes for a validated request.
type Quoter interface {
	RequestQuotes(ctx context.Context, req quote.Request) (quote.Result, error)
}

// StatusChecker produces a fresh health snapshot.
type StatusChecker interface {
	Check(ctx context.Context) health.SystemStatus
}

// Options configures a Handler.
type Options struct {
	Now        func() time.Time // Clock used to resolve the pickup date, nil for time.Now
	RetryAfter time.Duration    // Retry hint for 503 responses, DefaultRetryAfter if zero
}

// Handler serves the HTTP routes.
type Handler struct {
	quotes     Quoter
	status     StatusChecker
	now        func() time.Time
	retryAfter time.Duration
}

// New returns a handler over the quote engine and health monitor.
func New(q Quoter, s StatusChecker, opts Options) *Handler {
	h := &Handler{quotes: q, status: s, now: opts.Now, retryAfter: opts.RetryAfter}
	if h.now == nil {
		h.now = time.Now
	}
	if h.retryAfter <= 0 {
		h.retryAfter = DefaultRetryAfter
	}
	return h
}

// Register mounts the routes on app.
func (h *Handler) Register(app *fiber.App) {
	app.Post("/quotes", h.PostQuotes)
	app.Get("/status", h.GetStatus)
	app.Get("/health", Health)
}

// NewApp returns a fiber app with the routes mounted.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "shipquote",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          15 * time.Second,
	})
	h.Register(app)
	return app
}

// QuoteRequestBody is the JSON body of POST /quotes.
type QuoteRequestBody struct {
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	PickupDate  string  `json:"pickupDate"`
	WeightKg    float64 `json:"weightKg"`
	Fragile     bool    `json:"fragile"`
}

// QuotesResponse is the 200 body of POST /quotes.
type QuotesResponse struct {
	Quotes   []quote.Quote           `json:"quotes"`
	Messages []quote.ProviderMessage `json:"messages"`
	Cached   bool                    `json:"cached"`
}

// UnavailableResponse is the 503 body of POST /quotes.
type UnavailableResponse struct {
	Error      string                  `json:"error"`
	Messages   []quote.ProviderMessage `json:"messages"`
	RetryAfter int                     `json:"retryAfter"`
}

// ErrorResponse reports a rejected request.
type ErrorResponse struct {
	Value any    `json:"value,omitempty"`
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// PostQuotes handles POST /quotes.
func (h *Handler) PostQuotes(c *fiber.Ctx) error {
	var body QuoteRequestBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	now := h.now()
	var pickup time.Time
	if s := strings.TrimSpace(body.PickupDate); s != "" {
		var err error
		pickup, err = time.ParseInLocation(quote.DateLayout, s, now.Location())
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: "pickupDate must be formatted as " + quote.DateLayout,
				Field: "pickupDate",
				Value: body.PickupDate,
			})
		}
	}

	req, err := quote.NewRequest(body.Origin, body.Destination, body.WeightKg, pickup, body.Fragile, now)
	if err != nil {
		return validationError(c, err)
	}

	res, err := h.quotes.RequestQuotes(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, quote.ErrInvalidRequest) {
			return validationError(c, err)
		}
		log.Warnf("quote request aborted: %v", err)
		return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{Error: "request aborted"})
	}

	if res.Unavailable() {
		seconds := int(h.retryAfter / time.Second)
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
		return c.Status(fiber.StatusServiceUnavailable).JSON(UnavailableResponse{
			Error:      "no providers available",
			RetryAfter: seconds,
			Messages:   res.Messages,
		})
	}

	return c.JSON(QuotesResponse{Quotes: res.Quotes, Messages: res.Messages, Cached: res.Cached})
}

func validationError(c *fiber.Ctx, err error) error {
	resp := ErrorResponse{Error: err.Error()}
	var verr *quote.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
		resp.Value = verr.Value
	}
	return c.Status(fiber.StatusBadRequest).JSON(resp)
}

// GetStatus handles GET /status. OFFLINE maps to 503.
func (h *Handler) GetStatus(c *fiber.Ctx) error {
	status := h.status.Check(c.UserContext())
	code := fiber.StatusOK
	if !status.Available() {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(status)
}

// Health handles GET /health.
func Health(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusOK)
}
