package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"utadex/internal/logger"
)

const (
	innertubeBaseURL = "https://www.youtube.com/youtubei/v1"
	clientName       = "WEB"
	clientVersion    = "2.20250801.01.00"

	// Protobuf params selecting a channel's videos tab on browse.
	videosTabParams = "EgZ2aWRlb3PyBgQKAjoA"
)

// innertubeClient issues raw browse/search calls against the public
// video site's internal API. The remote is rate-sensitive and brittle,
// so every call goes through a rate limiter, a circuit breaker, and a
// small retry budget.
type innertubeClient struct {
	baseURL string
	httpc   *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func newInnertubeClient(httpc *http.Client, ratePerSecond float64) *innertubeClient {
	if httpc == nil {
		httpc = &http.Client{Timeout: 20 * time.Second}
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 2
	}

	log := logger.With("innertube")
	settings := gobreaker.Settings{
		Name:        "innertube",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}

	return &innertubeClient{
		baseURL: innertubeBaseURL,
		httpc:   httpc,
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), 1),
		breaker: gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

func (c *innertubeClient) do(ctx context.Context, endpoint string, payload map[string]any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload["context"] = map[string]any{
		"client": map[string]any{
			"clientName":    clientName,
			"clientVersion": clientVersion,
			"hl":            "en",
			"gl":            "US",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode innertube payload: %w", err)
	}

	return c.breaker.Execute(func() ([]byte, error) {
		var out []byte
		err := retry.Do(
			func() error {
				req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
				if err != nil {
					return err
				}
				req.Header.Set("Content-Type", "application/json")

				resp, err := c.httpc.Do(req)
				if err != nil {
					return err
				}
				defer resp.Body.Close()

				if resp.StatusCode >= 300 {
					return fmt.Errorf("innertube %s: status %d", endpoint, resp.StatusCode)
				}
				out, err = io.ReadAll(resp.Body)
				return err
			},
			retry.Attempts(3),
			retry.Delay(500*time.Millisecond),
			retry.DelayType(retry.BackOffDelay),
			retry.Context(ctx),
			retry.LastErrorOnly(true),
		)
		return out, err
	})
}

// browse loads a channel page. Either browseID+params (a tab) or a
// continuation token from a previous page.
func (c *innertubeClient) browse(ctx context.Context, browseID, params, continuation string) ([]byte, error) {
	payload := map[string]any{}
	if continuation != "" {
		payload["continuation"] = continuation
	} else {
		payload["browseId"] = browseID
		if params != "" {
			payload["params"] = params
		}
	}
	return c.do(ctx, "/browse", payload)
}

// search runs a site search. params scopes the result type, e.g.
// channels only.
func (c *innertubeClient) search(ctx context.Context, query, params string) ([]byte, error) {
	payload := map[string]any{"query": query}
	if params != "" {
		payload["params"] = params
	}
	return c.do(ctx, "/search", payload)
}
