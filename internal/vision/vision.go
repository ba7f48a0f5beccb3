// Package vision classifies images with the Azure Computer Vision analyze API.
package vision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
)

// AnalyzePath is appended to the configured endpoint.
const AnalyzePath = "/vision/v3.0/analyze/?visualFeatures=Adult,Description"

var (
	ErrInvalidEndpoint = errors.New("invalid azure endpoint, must be https://[name].cognitiveservices.azure.com")
	// ErrRateLimited is returned when the service answers with error code 429.
	ErrRateLimited = errors.New("vision: rate limited")
)

var endpointRE = regexp.MustCompile(`^https?://([a-z0-9-]+[.])*cognitiveservices[.]azure[.]com`)

// NormalizeEndpoint validates an endpoint and strips the trailing slash.
func NormalizeEndpoint(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if !endpointRE.MatchString(endpoint) {
		return "", ErrInvalidEndpoint
	}
	return strings.TrimSuffix(endpoint, "/"), nil
}

// Analysis is the subset of the analyze response used for moderation.
type Analysis struct {
	Adult   bool
	Racy    bool
	Gory    bool
	Caption string
	Tags    []string
}

func (a Analysis) Offensive() bool {
	return a.Adult || a.Racy || a.Gory
}

type Classifier interface {
	Analyze(ctx context.Context, endpoint, key, imageURL string) (Analysis, error)
}

type AzureClient struct {
	client *http.Client
}

var _ Classifier = (*AzureClient)(nil)

func NewAzureClient(client *http.Client) *AzureClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &AzureClient{client: client}
}

type analyzeRequest struct {
	URL string `json:"url"`
}

type analyzeResponse struct {
	Adult *struct {
		IsAdultContent bool `json:"isAdultContent"`
		IsRacyContent  bool `json:"isRacyContent"`
		IsGoryContent  bool `json:"isGoryContent"`
	} `json:"adult"`
	Description *struct {
		Tags     []string `json:"tags"`
		Captions []struct {
			Text string `json:"text"`
		} `json:"captions"`
	} `json:"description"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *AzureClient) Analyze(ctx context.Context, endpoint, key, imageURL string) (Analysis, error) {
	payload, err := sonic.Marshal(analyzeRequest{URL: imageURL})
	if err != nil {
		return Analysis{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(endpoint, "/")+AnalyzePath, bytes.NewReader(payload))
	if err != nil {
		return Analysis{}, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Analysis{}, fmt.Errorf("analyze image: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Analysis{}, fmt.Errorf("analyze image: %w", err)
	}
	var parsed analyzeResponse
	if err := sonic.Unmarshal(body, &parsed); err != nil {
		return Analysis{}, fmt.Errorf("analyze image: decode (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		if parsed.Error.Code == "429" || resp.StatusCode == http.StatusTooManyRequests {
			return Analysis{}, ErrRateLimited
		}
		return Analysis{}, fmt.Errorf("analyze image: %s: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if parsed.Adult == nil {
		return Analysis{}, fmt.Errorf("analyze image: response without adult section (status %d)", resp.StatusCode)
	}

	out := Analysis{
		Adult: parsed.Adult.IsAdultContent,
		Racy:  parsed.Adult.IsRacyContent,
		Gory:  parsed.Adult.IsGoryContent,
	}
	if parsed.Description != nil {
		out.Tags = parsed.Description.Tags
		if len(parsed.Description.Captions) > 0 {
			out.Caption = parsed.Description.Captions[0].Text
		}
	}
	return out, nil
}
