// Package oanda implements the market-data provider on top of the OANDA
// v20 REST API.
package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	platformhttp "ictbacktest/internal/platform/http"
	"ictbacktest/models"
)

// maxCandlesPerRequest is the API's hard cap on a single candles call;
// range fetches page in chunks of this size.
const maxCandlesPerRequest = 5000

// Client is the OANDA v20 API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *platformhttp.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new OANDA client.
type ClientOptions struct {
	APIKey          string
	Practice        bool
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetries      int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new OANDA API client.
func NewClient(options ClientOptions) *Client {
	baseURL := "https://api-fxtrade.oanda.com"
	if options.Practice {
		baseURL = "https://api-fxpractice.oanda.com"
	}

	return &Client{
		apiKey:  options.APIKey,
		baseURL: baseURL,
		httpClient: platformhttp.NewClient(platformhttp.ClientOptions{
			Timeout:         options.RequestTimeout,
			RequestsPerSec:  options.RequestsPerSec,
			MaxRetries:      options.MaxRetries,
			MaxRetryTimeout: options.MaxRetryTimeout,
		}),
		logger: log.With().Str("component", "oanda_client").Logger(),
	}
}

// instrumentFor maps common symbols to OANDA instrument names. Unknown
// symbols pass through unchanged so exotic instruments still work when
// given in OANDA notation.
func instrumentFor(symbol string) string {
	switch symbol {
	case "XAUUSD":
		return "XAU_USD"
	case "XAGUSD":
		return "XAG_USD"
	case "EURUSD":
		return "EUR_USD"
	case "GBPUSD":
		return "GBP_USD"
	case "USDJPY":
		return "USD_JPY"
	case "AUDUSD":
		return "AUD_USD"
	case "USDCAD":
		return "USD_CAD"
	case "NZDUSD":
		return "NZD_USD"
	case "USDCHF":
		return "USD_CHF"
	}
	return symbol
}

// granularityFor maps timeframe names to OANDA granularities.
func granularityFor(timeframe string) string {
	switch timeframe {
	case "M1", "M5", "M15", "M30", "H1", "H4", "D":
		return timeframe
	case "1min":
		return "M1"
	case "5min":
		return "M5"
	case "15min":
		return "M15"
	case "1h":
		return "H1"
	case "4h":
		return "H4"
	case "1day":
		return "D"
	}
	return timeframe
}

type candlesResponse struct {
	Instrument string `json:"instrument"`
	Candles    []struct {
		Time     string `json:"time"`
		Volume   float64 `json:"volume"`
		Complete bool   `json:"complete"`
		Mid      struct {
			O string `json:"o"`
			H string `json:"h"`
			L string `json:"l"`
			C string `json:"c"`
		} `json:"mid"`
	} `json:"candles"`
	ErrorMessage string `json:"errorMessage"`
}

// GetCandles fetches the most recent count candles. Implements
// models.MarketDataProvider.
func (c *Client) GetCandles(ctx context.Context, symbol, timeframe string, count int) ([]models.Candle, error) {
	if count > maxCandlesPerRequest {
		count = maxCandlesPerRequest
	}
	params := url.Values{}
	params.Set("granularity", granularityFor(timeframe))
	params.Set("count", strconv.Itoa(count))
	params.Set("price", "M")

	candles, err := c.fetch(ctx, symbol, params)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: empty candle data for %s %s", models.ErrDataFetch, symbol, timeframe)
	}
	return candles, nil
}

// GetCandlesRange fetches all candles in [from, to], paging forward in
// chunks of the per-request cap. Implements models.MarketDataProvider.
func (c *Client) GetCandlesRange(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error) {
	granularity := granularityFor(timeframe)
	var all []models.Candle
	cursor := from

	for cursor.Before(to) {
		params := url.Values{}
		params.Set("granularity", granularity)
		params.Set("from", cursor.UTC().Format(time.RFC3339))
		params.Set("count", strconv.Itoa(maxCandlesPerRequest))
		params.Set("price", "M")
		params.Set("includeFirst", boolParam(len(all) == 0))

		batch, err := c.fetch(ctx, symbol, params)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		kept := 0
		for _, candle := range batch {
			if candle.Time.After(to) {
				break
			}
			all = append(all, candle)
			kept++
		}

		last := batch[len(batch)-1].Time
		if kept < len(batch) || !last.After(cursor) || len(batch) < maxCandlesPerRequest {
			break
		}
		cursor = last
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("%w: no candles for %s %s in %s..%s",
			models.ErrDataFetch, symbol, timeframe,
			from.Format("2006-01-02"), to.Format("2006-01-02"))
	}

	sort.Slice(all, func(i, j int) bool { return all[i].Time.Before(all[j].Time) })
	c.logger.Debug().
		Str("symbol", symbol).
		Str("timeframe", timeframe).
		Int("count", len(all)).
		Msg("fetched candle range")
	return all, nil
}

// GetCurrentPrice returns the latest mid close from a single one-minute
// candle. Implements models.MarketDataProvider.
func (c *Client) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	candles, err := c.GetCandles(ctx, symbol, "M1", 1)
	if err != nil {
		return 0, err
	}
	return candles[len(candles)-1].Close, nil
}

func (c *Client) fetch(ctx context.Context, symbol string, params url.Values) ([]models.Candle, error) {
	endpoint := fmt.Sprintf("%s/v3/instruments/%s/candles?%s",
		c.baseURL, instrumentFor(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept-Datetime-Format", "RFC3339")

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrDataFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var data candlesResponse
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error().Err(err).Str("response", string(body)).Msg("unparseable candles response")
		return nil, fmt.Errorf("%w: parsing response: %v", models.ErrDataFetch, err)
	}
	if data.ErrorMessage != "" {
		return nil, fmt.Errorf("%w: %s", models.ErrDataFetch, data.ErrorMessage)
	}

	candles := make([]models.Candle, 0, len(data.Candles))
	for _, v := range data.Candles {
		if !v.Complete {
			continue
		}
		t, err := time.Parse(time.RFC3339, v.Time)
		if err != nil {
			return nil, fmt.Errorf("%w: parsing candle time %q: %v", models.ErrDataFetch, v.Time, err)
		}
		open, err1 := strconv.ParseFloat(v.Mid.O, 64)
		high, err2 := strconv.ParseFloat(v.Mid.H, 64)
		low, err3 := strconv.ParseFloat(v.Mid.L, 64)
		closeP, err4 := strconv.ParseFloat(v.Mid.C, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return nil, fmt.Errorf("%w: parsing candle prices at %s", models.ErrDataFetch, v.Time)
		}
		candles = append(candles, models.Candle{
			Time:   t.UTC(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closeP,
			Volume: v.Volume,
		})
	}
	return candles, nil
}

func boolParam(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
