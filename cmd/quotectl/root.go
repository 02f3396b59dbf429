package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dreamware/shipquote/internal/api"
	"github.com/dreamware/shipquote/internal/health"
	"github.com/dreamware/shipquote/internal/quote"
)

// client talks to one quoted instance.
type client struct {
	http   *http.Client
	server string
}

func newRootCmd() *cobra.Command {
	c := &client{http: &http.Client{}}
	var timeout time.Duration

	root := &cobra.Command{
		Use:   "quotectl",
		Short: "Request shipping quotes and provider status from quoted",
		PersistentPreRun: func(*cobra.Command, []string) {
			c.http.Timeout = timeout
			c.server = strings.TrimRight(c.server, "/")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.server, "server", getenv("QUOTED_URL", "http://localhost:8080"), "quoted base URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Second, "HTTP timeout")

	root.AddCommand(newQuoteCmd(c), newStatusCmd(c))
	return root
}

func newQuoteCmd(c *client) *cobra.Command {
	var (
		body   api.QuoteRequestBody
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Compare quotes from every configured carrier",
		Example: `  quotectl quote --origin Lisbon --destination Madrid --weight 12.5 --pickup 2026-05-01
  quotectl quote --origin Lisbon --destination Paris --weight 3 --fragile --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if body.PickupDate == "" {
				body.PickupDate = time.Now().AddDate(0, 0, 1).Format(quote.DateLayout)
			}
			raw, status, err := c.do(cmd.Context(), http.MethodPost, "/quotes", body)
			if err != nil {
				return err
			}
			if asJSON {
				_, err := cmd.OutOrStdout().Write(append(raw, '\n'))
				return err
			}
			return printQuotes(cmd.OutOrStdout(), raw, status)
		},
	}
	f := cmd.Flags()
	f.StringVar(&body.Origin, "origin", "", "pickup city")
	f.StringVar(&body.Destination, "destination", "", "delivery city")
	f.Float64Var(&body.WeightKg, "weight", 0, "parcel weight in kg")
	f.StringVar(&body.PickupDate, "pickup", "", "pickup date (YYYY-MM-DD, default tomorrow)")
	f.BoolVar(&body.Fragile, "fragile", false, "fragile handling (+15%)")
	f.BoolVar(&asJSON, "json", false, "print the raw JSON response")
	_ = cmd.MarkFlagRequired("origin")
	_ = cmd.MarkFlagRequired("destination")
	_ = cmd.MarkFlagRequired("weight")
	return cmd
}

func newStatusCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show provider health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, status, err := c.do(cmd.Context(), http.MethodGet, "/status", nil)
			if err != nil {
				return err
			}
			if status != http.StatusOK && status != http.StatusServiceUnavailable {
				return fmt.Errorf("status request failed: http %d", status)
			}
			var s statusBody
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}
			printStatus(cmd.OutOrStdout(), s)
			if s.Status == string(health.StatusOffline) {
				return errors.New("system is offline")
			}
			return nil
		},
	}
}

func (c *client) do(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.server+path, reader)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("contact %s: %w", c.server, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

var errUnavailable = errors.New("no providers available")

func printQuotes(w io.Writer, raw []byte, status int) error {
	switch status {
	case http.StatusOK:
	case http.StatusBadRequest:
		var e api.ErrorResponse
		if err := json.Unmarshal(raw, &e); err != nil {
			return fmt.Errorf("request rejected: %s", strings.TrimSpace(string(raw)))
		}
		return fmt.Errorf("request rejected: %s", e.Error)
	case http.StatusServiceUnavailable:
		var u api.UnavailableResponse
		if err := json.Unmarshal(raw, &u); err == nil {
			printMessages(w, u.Messages)
			return fmt.Errorf("%w, retry in %ds", errUnavailable, u.RetryAfter)
		}
		return errUnavailable
	default:
		return fmt.Errorf("quote request failed: http %d", status)
	}

	var resp api.QuotesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("decode quotes: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CARRIER\tPRICE\tDAYS\tMODE\tBADGES")
	for _, q := range resp.Quotes {
		var badges []string
		if q.IsCheapest {
			badges = append(badges, "cheapest")
		}
		if q.IsFastest {
			badges = append(badges, "fastest")
		}
		fmt.Fprintf(tw, "%s\t%.2f %s\t%d-%d\t%s\t%s\n",
			q.ProviderName, q.Price, q.Currency, q.MinDays, q.MaxDays, q.TransportMode, strings.Join(badges, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printMessages(w, resp.Messages)
	if resp.Cached {
		fmt.Fprintln(w, "(cached)")
	}
	return nil
}

func printMessages(w io.Writer, messages []quote.ProviderMessage) {
	for _, m := range messages {
		fmt.Fprintf(w, "! %s: %s\n", m.Provider, m.Message)
	}
}

// statusBody mirrors the GET /status payload; response times arrive in
// milliseconds.
type statusBody struct {
	Status    string `json:"status"`
	Providers []struct {
		ProviderName string `json:"providerName"`
		Status       string `json:"status"`
		Error        string `json:"error"`
		ResponseTime int64  `json:"responseTime"`
	} `json:"providers"`
	ActiveCount int `json:"activeCount"`
	TotalCount  int `json:"totalCount"`
}

func printStatus(w io.Writer, s statusBody) {
	fmt.Fprintf(w, "%s (%d/%d providers online)\n", s.Status, s.ActiveCount, s.TotalCount)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, p := range s.Providers {
		fmt.Fprintf(tw, "%s\t%s\t%dms\t%s\n", p.ProviderName, p.Status, p.ResponseTime, p.Error)
	}
	_ = tw.Flush()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
