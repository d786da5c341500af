package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// BoothRegistration describes the booth to the operator console.
type BoothRegistration struct {
	BoothID string `json:"booth_id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// RegisterBooth announces the booth to the console API and returns the agent
// key the websocket link must present.
func RegisterBooth(ctx context.Context, client *http.Client, apiURL, apiKey string, reg BoothRegistration) (string, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	body, err := json.Marshal(reg)
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(apiURL, "/") + "/api/booths"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out struct {
		Data struct {
			AgentKey string `json:"agent_key"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding registration response: %w", err)
	}
	if out.Data.AgentKey == "" {
		return "", fmt.Errorf("no agent_key found in response")
	}
	return out.Data.AgentKey, nil
}
