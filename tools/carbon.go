// Package tools implements the actions the decision step can request: the
// carbon partner API calls (credit pull, lead create, web form submit), the
// local savings computation, and the consent questions that suspend the turn
// for a human answer.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lexcodex/leadline/framework"
)

// affiliateLeadID identifies this intake channel to the partner API.
const affiliateLeadID = 999

// CarbonClient talks to the carbon partner API. Transport failures, non-2xx
// statuses, and malformed bodies are all normalized into a refused
// framework.ToolResult; the caller never sees a raw error.
type CarbonClient struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

// NewCarbonClient builds a client. A zero timeout defaults to 30s.
func NewCarbonClient(baseURL, apiKey string, timeout time.Duration) *CarbonClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CarbonClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// CreditPull requests a soft credit pull for the customer.
func (c *CarbonClient) CreditPull(ctx context.Context, slots framework.Slots) *framework.ToolResult {
	return c.post(ctx, "/api/affiliate/creditpull", leadPayload(slots))
}

// LeadCreate registers the customer as a lead.
func (c *CarbonClient) LeadCreate(ctx context.Context, slots framework.Slots) *framework.ToolResult {
	return c.post(ctx, "/api/lead/create?detailedResponse=true", leadPayload(slots))
}

// WebFormSubmit files the customer's intake form.
func (c *CarbonClient) WebFormSubmit(ctx context.Context, slots framework.Slots) *framework.ToolResult {
	return c.post(ctx, "/api/affiliate/webform", leadPayload(slots))
}

// leadPayload builds the outbound record: the slot fields under their wire
// names plus the affiliate lead id.
func leadPayload(slots framework.Slots) map[string]interface{} {
	data, _ := json.Marshal(slots)
	payload := make(map[string]interface{})
	_ = json.Unmarshal(data, &payload)
	payload["LeadId"] = affiliateLeadID
	return payload
}

type carbonResponse struct {
	Success bool                   `json:"Success"`
	Data    map[string]interface{} `json:"Data"`
	Message string                 `json:"Message"`
}

// post runs one API round trip. Every result it returns is marked Attempted
// so the reducer records the outcome even when the call never reached the API.
func (c *CarbonClient) post(ctx context.Context, path string, payload interface{}) *framework.ToolResult {
	res := c.roundTrip(ctx, path, payload)
	res.Attempted = true
	return res
}

func (c *CarbonClient) roundTrip(ctx context.Context, path string, payload interface{}) *framework.ToolResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return framework.SoftFail("encode request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return framework.SoftFail("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("APIKEY", c.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return framework.SoftFail("request failed: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return framework.SoftFail("read response: %v", err)
	}
	if resp.StatusCode >= 300 {
		return framework.SoftFail("api returned status %d: %s", resp.StatusCode, truncate(raw, 512))
	}
	var decoded carbonResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return framework.SoftFail("malformed response: %v", err)
	}
	return &framework.ToolResult{
		Success: decoded.Success,
		Data:    decoded.Data,
		Message: decoded.Message,
	}
}

func truncate(raw []byte, max int) string {
	if len(raw) <= max {
		return string(raw)
	}
	return fmt.Sprintf("%s...(truncated)", raw[:max])
}
