package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

// WHMClient talks to the WHM JSON API with reseller credentials.
// cPanel-level operations (mkdir, file writes) go through the WHM
// "cpanel" passthrough on behalf of the target account.
type WHMClient struct {
	baseURL    string
	username   string
	apiToken   string
	httpClient *http.Client
}

// NewWHMClient creates a WHM client. Many WHM servers run with
// self-signed certificates on :2087, so TLS verification is optional.
func NewWHMClient(baseURL, username, apiToken string, insecureTLS bool) *WHMClient {
	transport := &http.Transport{}
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &WHMClient{
		baseURL:  baseURL,
		username: username,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

// CreateAccountRequest holds the parameters for WHM createacct.
type CreateAccountRequest struct {
	Domain   string
	Username string
	Password string
	Plan     string
}

// CreateAccountResponse is the subset of the createacct payload we use.
type CreateAccountResponse struct {
	StatusMsg string
	ServerIP  string
}

// whmResult mirrors WHM API 0/1 result envelopes.
type whmResult struct {
	Result []struct {
		Status    int    `json:"status"`
		StatusMsg string `json:"statusmsg"`
		Options   struct {
			IP string `json:"ip"`
		} `json:"options"`
	} `json:"result"`
}

// CreateAccount calls WHM createacct. A non-success status code from
// the remote is a hard failure carrying the remote reason string.
func (c *WHMClient) CreateAccount(ctx context.Context, req *CreateAccountRequest) (*CreateAccountResponse, error) {
	log.Printf("[WHMClient] Creating account (domain: %s, user: %s, plan: %s)", req.Domain, req.Username, req.Plan)

	params := url.Values{}
	params.Set("api.version", "1")
	params.Set("domain", req.Domain)
	params.Set("username", req.Username)
	params.Set("password", req.Password)
	params.Set("plan", req.Plan)

	body, err := c.get(ctx, "/json-api/createacct", params)
	if err != nil {
		return nil, err
	}

	var result whmResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w (body: %s)", err, truncate(body))
	}
	if len(result.Result) == 0 {
		return nil, fmt.Errorf("createacct: empty result (body: %s)", truncate(body))
	}
	r := result.Result[0]
	if r.Status != 1 {
		return nil, &remoteError{op: "createacct", reason: r.StatusMsg}
	}

	log.Printf("[WHMClient] Account created: %s (ip: %s)", req.Username, r.Options.IP)
	return &CreateAccountResponse{StatusMsg: r.StatusMsg, ServerIP: r.Options.IP}, nil
}

// Account is one entry from listaccts.
type Account struct {
	Domain string `json:"domain"`
	User   string `json:"user"`
	IP     string `json:"ip"`
}

// ListAccounts returns all accounts owned by the reseller.
func (c *WHMClient) ListAccounts(ctx context.Context) ([]Account, error) {
	params := url.Values{}
	params.Set("api.version", "1")

	body, err := c.get(ctx, "/json-api/listaccts", params)
	if err != nil {
		return nil, err
	}

	var result struct {
		Acct []Account `json:"acct"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result.Acct, nil
}

// FindAccountByDomain resolves the cPanel account serving a domain.
func (c *WHMClient) FindAccountByDomain(ctx context.Context, domain string) (*Account, error) {
	accounts, err := c.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range accounts {
		if accounts[i].Domain == domain {
			return &accounts[i], nil
		}
	}
	return nil, fmt.Errorf("no account found for domain %s", domain)
}

// MakeDirectory creates a directory under the account's web root via
// the Fileman mkdir UAPI call.
func (c *WHMClient) MakeDirectory(ctx context.Context, cpanelUser, path, name string) error {
	params := url.Values{}
	params.Set("path", path)
	params.Set("name", name)

	if err := c.cpanel(ctx, cpanelUser, "Fileman", "mkdir", params); err != nil {
		return fmt.Errorf("mkdir %s/%s: %w", path, name, err)
	}
	return nil
}

// WriteFile writes content into a file under the account's web root via
// the Fileman save_file_content UAPI call.
func (c *WHMClient) WriteFile(ctx context.Context, cpanelUser, dir, filename, content string) error {
	params := url.Values{}
	params.Set("dir", dir)
	params.Set("file", filename)
	params.Set("content", content)
	params.Set("from_charset", "UTF-8")
	params.Set("to_charset", "UTF-8")

	if err := c.cpanel(ctx, cpanelUser, "Fileman", "save_file_content", params); err != nil {
		return fmt.Errorf("write %s/%s: %w", dir, filename, err)
	}
	return nil
}

// DeleteFile removes a file from the account (best-effort cleanup of
// default security files after account creation).
func (c *WHMClient) DeleteFile(ctx context.Context, cpanelUser, path string) error {
	params := url.Values{}
	params.Set("paths", path)

	if err := c.cpanel(ctx, cpanelUser, "Fileman", "delete_files", params); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// StartAutoSSL triggers certificate issuance for a freshly created account.
func (c *WHMClient) StartAutoSSL(ctx context.Context, cpanelUser string) error {
	params := url.Values{}
	params.Set("api.version", "1")
	params.Set("username", cpanelUser)

	body, err := c.get(ctx, "/json-api/start_autossl_check_for_one_user", params)
	if err != nil {
		return err
	}

	var result struct {
		Metadata struct {
			Result int    `json:"result"`
			Reason string `json:"reason"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if result.Metadata.Result != 1 {
		return &remoteError{op: "start_autossl", reason: result.Metadata.Reason}
	}
	return nil
}

// cpanel performs a UAPI call through the WHM passthrough endpoint.
func (c *WHMClient) cpanel(ctx context.Context, cpanelUser, module, fn string, params url.Values) error {
	params.Set("cpanel_jsonapi_user", cpanelUser)
	params.Set("cpanel_jsonapi_apiversion", "3")
	params.Set("cpanel_jsonapi_module", module)
	params.Set("cpanel_jsonapi_func", fn)

	body, err := c.get(ctx, "/json-api/cpanel", params)
	if err != nil {
		return err
	}

	var result struct {
		Result struct {
			Status int      `json:"status"`
			Errors []string `json:"errors"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decode response: %w (body: %s)", err, truncate(body))
	}
	if result.Result.Status != 1 {
		reason := "unknown error"
		if len(result.Result.Errors) > 0 {
			reason = result.Result.Errors[0]
		}
		return &remoteError{op: module + "::" + fn, reason: reason}
	}
	return nil
}

func (c *WHMClient) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("whm %s:%s", c.username, c.apiToken))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whm returned status %d: %s", resp.StatusCode, truncate(body))
	}
	return body, nil
}

// remoteError is a structured rejection from the WHM side; the service
// layer converts it into the user-facing taxonomy.
type remoteError struct {
	op     string
	reason string
}

func (e *remoteError) Error() string { return fmt.Sprintf("%s: %s", e.op, e.reason) }

// NewRemoteError builds a structured remote rejection; exposed so test
// doubles can produce the same error shape the real clients do.
func NewRemoteError(op, reason string) error {
	return &remoteError{op: op, reason: reason}
}

// RemoteReason extracts the remote-supplied reason string from a WHM
// rejection, or "" when err is a transport-level failure.
func RemoteReason(err error) (op, reason string, ok bool) {
	var re *remoteError
	if errors.As(err, &re) {
		return re.op, re.reason, true
	}
	return "", "", false
}

func truncate(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
