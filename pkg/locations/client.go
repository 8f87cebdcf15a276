package locations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/MomPansy/seasense-ingest/pkg/tracing"
)

// Entry is one row of the upstream location reference file.
type Entry struct {
	LocationCode        string `json:"locationCode"`
	LocationDescription string `json:"locationDescription"`
}

// Dictionary maps a location description to its canonical code.
type Dictionary map[string]string

type Client struct {
	client   *http.Client
	endpoint string
	apiKey   string
	logger   ectologger.Logger
}

func NewClient(endpoint, apiKey string, timeout time.Duration, logger ectologger.Logger) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		apiKey:   apiKey,
		logger:   logger,
	}
}

// FetchDictionary retrieves the current location reference data. The upstream
// answers the reference request with a Location header pointing at the actual
// file; when the header is absent the body itself is the file.
func (c *Client) FetchDictionary(ctx context.Context) (Dictionary, error) {
	ctx, span := tracing.StartSpan(ctx, "locations.Client.FetchDictionary")
	defer span.End()

	body, err := c.fetchReferenceFile(ctx)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Error("Failed to fetch location reference data")
		return nil, err
	}

	var entries []Entry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decoding location reference data: %w", err)
	}

	dict := make(Dictionary, len(entries))
	for _, entry := range entries {
		if entry.LocationDescription == "" {
			continue
		}
		dict[entry.LocationDescription] = entry.LocationCode
	}

	c.logger.WithContext(ctx).WithField("entries", len(dict)).Info("Fetched location code dictionary")
	return dict, nil
}

func (c *Client) fetchReferenceFile(ctx context.Context) ([]byte, error) {
	body, location, err := c.get(ctx, c.endpoint, true)
	if err != nil {
		return nil, err
	}
	if location == "" {
		return body, nil
	}

	// The file URL is pre-signed; no api key on the second hop.
	body, _, err = c.get(ctx, location, false)
	return body, err
}

func (c *Client) get(ctx context.Context, endpoint string, withKey bool) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", err
	}
	if withKey {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("location reference request to %s returned status %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Location"), nil
}
