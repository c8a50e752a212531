package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
)

const (
	defaultStockBaseURL = "https://www.alphavantage.co"

	// StockAPIKeyEnv is the environment variable consulted for the Alpha
	// Vantage API key when none is supplied via options.
	StockAPIKeyEnv = "ALPHA_VANTAGE_API_KEY"
)

// StockPriceOptions configures the stock price tool.
type StockPriceOptions struct {
	// HTTPClient performs the outbound request. Defaults to a client with a
	// ten second timeout.
	HTTPClient HTTPDoer

	// BaseURL is the Alpha Vantage endpoint. Overridable for tests.
	BaseURL string

	// APIKey authenticates against Alpha Vantage. When empty the
	// ALPHA_VANTAGE_API_KEY environment variable is consulted at call time.
	APIKey string
}

type stockPriceArgs struct {
	Symbol string `json:"symbol" description:"Ticker symbol, for example AAPL or TSLA"`
}

// NewStockPrice returns a tool that fetches the latest quote for a ticker
// symbol from Alpha Vantage. A missing API key and transport failures are
// reported inside the result payload under an "error" key so the model can
// explain the problem instead of the run failing.
func NewStockPrice(optFns ...func(o *StockPriceOptions)) *FunctionTool {
	opts := StockPriceOptions{
		BaseURL: defaultStockBaseURL,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = defaultHTTPClient()
	}

	return NewFunctionToolFromStruct(
		"get_stock_price",
		"Fetch the latest stock price for a given symbol (e.g. 'AAPL', 'TSLA') using Alpha Vantage.",
		stockPriceArgs{},
		func(ctx context.Context, args map[string]any) (any, error) {
			symbol, _ := args["symbol"].(string)

			apiKey := opts.APIKey
			if apiKey == "" {
				apiKey = os.Getenv(StockAPIKeyEnv)
			}

			if apiKey == "" {
				return map[string]any{"error": StockAPIKeyEnv + " is not set"}, nil
			}

			quote, err := fetchQuote(ctx, opts, symbol, apiKey)
			if err != nil {
				return map[string]any{"error": fmt.Sprintf("Failed to fetch stock price: %v", err)}, nil
			}

			return quote, nil
		},
	)
}

func fetchQuote(ctx context.Context, opts StockPriceOptions, symbol, apiKey string) (map[string]any, error) {
	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", symbol)
	params.Set("apikey", apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.BaseURL+"/query?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build quote request: %w", err)
	}

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read quote response: %w", err)
	}

	var quote map[string]any
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("decode quote response: %w", err)
	}

	return quote, nil
}
