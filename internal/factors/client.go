package factors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/rs/zerolog/log"
)

// Config holds the connection settings for the news-analysis endpoint.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// FetchResult is one envelope from the factor endpoint.
type FetchResult struct {
	Factors   []Factor `json:"factors"`
	Source    string   `json:"source"`
	UpdatedAt string   `json:"updatedAt"`
}

// Client fetches variation factors from the analysis endpoint. It keeps
// the last successfully fetched set so a simulation can proceed on stale
// factors when the endpoint is down.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu   sync.RWMutex
	last *FetchResult
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// factorSchema validates a single envelope entry. Entries that fail
// validation (including unknown impact types) are dropped silently.
var factorSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	schema := &jsonschema.Schema{
		Type:     "object",
		Required: []string{"id", "label", "impactType", "magnitude"},
		Properties: map[string]*jsonschema.Schema{
			"id":          {Type: "string"},
			"label":       {Type: "string"},
			"description": {Type: "string"},
			"impactType": {
				Type: "string",
				Enum: []any{"pace", "reliability", "qualifying", "strategy"},
			},
			"magnitude": {Type: "number", Minimum: fptr(-1), Maximum: fptr(1)},
			"enabled":   {Type: "boolean"},
			"targets": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type:     "object",
					Required: []string{"type", "id"},
					Properties: map[string]*jsonschema.Schema{
						"type": {Type: "string", Enum: []any{"driver", "team"}},
						"id":   {Type: "string"},
					},
				},
			},
		},
	}
	return schema.Resolve(nil)
})

func fptr(v float64) *float64 { return &v }

// Fetch requests a fresh factor set. Malformed entries never surface as
// errors; only transport and envelope-level failures do.
func (c *Client) Fetch(ctx context.Context) (*FetchResult, error) {
	if c.cfg.Endpoint == "" {
		return nil, fmt.Errorf("no factor endpoint configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint, nil)
	if err != nil {
		return nil, err
	}

	log.Info().Str("endpoint", c.cfg.Endpoint).Msg("Requesting variation factors")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("factor endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("factor endpoint returned status %d", resp.StatusCode)
	}

	var envelope struct {
		Factors   []json.RawMessage `json:"factors"`
		Source    string            `json:"source"`
		UpdatedAt string            `json:"updatedAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode factor envelope: %w", err)
	}

	result := &FetchResult{
		Factors:   parseEntries(envelope.Factors),
		Source:    envelope.Source,
		UpdatedAt: envelope.UpdatedAt,
	}
	// Response headers win over the envelope body when both are present.
	if v := resp.Header.Get("X-Analysis-Source"); v != "" {
		result.Source = v
	}
	if v := resp.Header.Get("X-Updated-At"); v != "" {
		result.UpdatedAt = v
	}

	c.mu.Lock()
	c.last = result
	c.mu.Unlock()

	log.Info().Int("factors", len(result.Factors)).Str("source", result.Source).Msg("Fetched variation factors")
	return result, nil
}

// LastKnown returns the most recent successful fetch, or nil.
func (c *Client) LastKnown() *FetchResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func parseEntries(raw []json.RawMessage) []Factor {
	resolved, err := factorSchema()
	if err != nil {
		// Schema is hand-written; a resolve failure is a programming
		// error, but dropping validation beats dropping the feature.
		log.Warn().Err(err).Msg("Factor schema failed to resolve, accepting entries unvalidated")
	}

	out := make([]Factor, 0, len(raw))
	for _, entry := range raw {
		if resolved != nil {
			var instance any
			if err := json.Unmarshal(entry, &instance); err != nil {
				log.Debug().Err(err).Msg("Dropping unparseable factor entry")
				continue
			}
			if err := resolved.Validate(instance); err != nil {
				log.Debug().Err(err).Msg("Dropping invalid factor entry")
				continue
			}
		}

		// A factor fresh from analysis defaults to enabled.
		f := Factor{Enabled: true}
		if err := json.Unmarshal(entry, &f); err != nil {
			log.Debug().Err(err).Msg("Dropping undecodable factor entry")
			continue
		}
		out = append(out, f)
	}
	return out
}
