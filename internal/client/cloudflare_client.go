package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/x8080x2/CLS0-sub000/internal/config"
)

const cloudflareAPIBase = "https://api.cloudflare.com/client/v4"

// CloudflareClient is bound to a single credential entry. The edge
// configurator builds one per rotation attempt so that a zone lookup
// and all follow-up calls run against the same account.
type CloudflareClient struct {
	baseURL    string
	cred       config.EdgeCredential
	httpClient *http.Client
}

func NewCloudflareClient(cred config.EdgeCredential) *CloudflareClient {
	return &CloudflareClient{
		baseURL: cloudflareAPIBase,
		cred:    cred,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewCloudflareClientWithBase is used by tests to point the client at a
// local stub server.
func NewCloudflareClientWithBase(baseURL string, cred config.EdgeCredential) *CloudflareClient {
	c := NewCloudflareClient(cred)
	c.baseURL = baseURL
	return c
}

// Zone is the subset of the v4 zone object we consume.
type Zone struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Status      string   `json:"status"`
	NameServers []string `json:"name_servers"`
}

// DNSRecord is the subset of the v4 dns_records object we consume.
type DNSRecord struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl,omitempty"`
	Proxied bool   `json:"proxied"`
}

// apiResponse is the standard Cloudflare v4 envelope.
type apiResponse struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Result json.RawMessage `json:"result"`
}

// GetZoneByName looks up a zone by exact domain name. Returns (nil, nil)
// when no zone exists on this account.
func (c *CloudflareClient) GetZoneByName(ctx context.Context, name string) (*Zone, error) {
	resp, err := c.request(ctx, http.MethodGet, "/zones?name="+url.QueryEscape(name), nil)
	if err != nil {
		return nil, err
	}

	var zones []*Zone
	if err := json.Unmarshal(resp.Result, &zones); err != nil {
		return nil, fmt.Errorf("decode zones: %w", err)
	}
	if len(zones) == 0 {
		return nil, nil
	}
	return zones[0], nil
}

// CreateZone registers the domain as a new zone on this account.
func (c *CloudflareClient) CreateZone(ctx context.Context, name string) (*Zone, error) {
	body := map[string]interface{}{
		"name":       name,
		"jump_start": false,
	}

	resp, err := c.request(ctx, http.MethodPost, "/zones", body)
	if err != nil {
		return nil, err
	}

	var zone Zone
	if err := json.Unmarshal(resp.Result, &zone); err != nil {
		return nil, fmt.Errorf("decode zone: %w", err)
	}
	return &zone, nil
}

// GetZoneDetails fetches the zone, mainly for its name server list.
func (c *CloudflareClient) GetZoneDetails(ctx context.Context, zoneID string) (*Zone, error) {
	resp, err := c.request(ctx, http.MethodGet, "/zones/"+zoneID, nil)
	if err != nil {
		return nil, err
	}

	var zone Zone
	if err := json.Unmarshal(resp.Result, &zone); err != nil {
		return nil, fmt.Errorf("decode zone: %w", err)
	}
	return &zone, nil
}

// ListDNSRecords lists records of the given type and full name.
func (c *CloudflareClient) ListDNSRecords(ctx context.Context, zoneID, recordType, name string) ([]*DNSRecord, error) {
	endpoint := fmt.Sprintf("/zones/%s/dns_records?type=%s&name=%s", zoneID, url.QueryEscape(recordType), url.QueryEscape(name))
	resp, err := c.request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var records []*DNSRecord
	if err := json.Unmarshal(resp.Result, &records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}

// CreateDNSRecord inserts a fresh record.
func (c *CloudflareClient) CreateDNSRecord(ctx context.Context, zoneID string, record *DNSRecord) (*DNSRecord, error) {
	if record.TTL == 0 {
		record.TTL = 1 // automatic
	}

	resp, err := c.request(ctx, http.MethodPost, "/zones/"+zoneID+"/dns_records", record)
	if err != nil {
		return nil, err
	}

	var created DNSRecord
	if err := json.Unmarshal(resp.Result, &created); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &created, nil
}

// DeleteDNSRecord removes a record by ID.
func (c *CloudflareClient) DeleteDNSRecord(ctx context.Context, zoneID, recordID string) error {
	_, err := c.request(ctx, http.MethodDelete, "/zones/"+zoneID+"/dns_records/"+recordID, nil)
	return err
}

// PatchZoneSetting updates a single zone setting, e.g. always_use_https.
func (c *CloudflareClient) PatchZoneSetting(ctx context.Context, zoneID, setting string, value interface{}) error {
	body := map[string]interface{}{"value": value}
	_, err := c.request(ctx, http.MethodPatch, "/zones/"+zoneID+"/settings/"+setting, body)
	return err
}

func (c *CloudflareClient) request(ctx context.Context, method, endpoint string, body interface{}) (*apiResponse, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cred.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cred.Token)
	} else {
		req.Header.Set("X-Auth-Email", c.cred.Email)
		req.Header.Set("X-Auth-Key", c.cred.Key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w (body: %s)", err, truncate(respBody))
	}

	if !apiResp.Success {
		reason := "unknown error"
		if len(apiResp.Errors) > 0 {
			reason = apiResp.Errors[0].Message
		}
		return nil, &remoteError{op: method + " " + endpoint, reason: reason}
	}

	return &apiResp, nil
}
