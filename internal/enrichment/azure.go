package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	contentSafetyAPIVersion = "2023-10-01"
	languageAPIVersion      = "2023-04-01"
	maxErrorBody            = 512
)

type azureClient struct {
	endpoint   string
	key        string
	httpClient *http.Client
}

func newAzureClient(endpoint, key string, timeout time.Duration, httpClient *http.Client) azureClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return azureClient{
		endpoint:   strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		key:        strings.TrimSpace(key),
		httpClient: httpClient,
	}
}

func (c azureClient) configured() bool {
	return c.endpoint != "" && c.key != ""
}

func (c azureClient) postJSON(ctx context.Context, path, apiVersion string, payload, out any) error {
	if !c.configured() {
		return errors.New("azure endpoint or key is not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.endpoint+path+"?api-version="+apiVersion,
		bytes.NewReader(body),
	)
	if err != nil {
		return err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("azure %s error (%d): %s", path, resp.StatusCode, truncateForLog(string(raw), maxErrorBody))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode azure %s response: %w", path, err)
	}
	return nil
}

func truncateForLog(value string, limit int) string {
	trimmed := strings.TrimSpace(value)
	if limit <= 0 || len(trimmed) <= limit {
		return trimmed
	}
	return trimmed[:limit] + "...(truncated)"
}
