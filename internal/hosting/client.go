package hosting

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Client is a typed wrapper over the hosting provider's v4 REST API. All
// calls funnel through one request helper so the thirty-odd endpoints share
// auth, serialization and error mapping.
type Client struct {
	baseURL   string
	accountID string
	token     string
	http      *http.Client
	logger    *slog.Logger
}

// New constructs a Client. The client is passed into services explicitly;
// there is no shared module-level instance.
func New(baseURL, accountID, token string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		accountID: accountID,
		token:     token,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// request performs one JSON API call and decodes the provider envelope into out.
func (c *Client) request(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	return c.decode(resp, out)
}

// decode unwraps the provider envelope; success:false becomes an *APIError.
func (c *Client) decode(resp *http.Response, out any) error {
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		apiErr := &APIError{Status: resp.StatusCode, Errors: env.Errors}
		if c.logger != nil {
			c.logger.Warn("hosting api call failed", "status", resp.StatusCode, "error", apiErr.Error())
		}
		return apiErr
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func (c *Client) projectsPath(suffix string) string {
	return "/accounts/" + url.PathEscape(c.accountID) + "/pages/projects" + suffix
}

// ListProjects returns all hosting projects in the account.
func (c *Client) ListProjects(ctx context.Context) ([]PagesProject, error) {
	var projects []PagesProject
	if err := c.request(ctx, http.MethodGet, c.projectsPath(""), nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject fetches one hosting project by name.
func (c *Client) GetProject(ctx context.Context, name string) (*PagesProject, error) {
	var project PagesProject
	if err := c.request(ctx, http.MethodGet, c.projectsPath("/"+url.PathEscape(name)), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// CreateProject registers a hosting project.
func (c *Client) CreateProject(ctx context.Context, input CreateProjectInput) (*PagesProject, error) {
	if input.ProductionBranch == "" {
		input.ProductionBranch = "main"
	}
	var project PagesProject
	if err := c.request(ctx, http.MethodPost, c.projectsPath(""), input, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// DeleteProject removes a hosting project and its deployments.
func (c *Client) DeleteProject(ctx context.Context, name string) error {
	return c.request(ctx, http.MethodDelete, c.projectsPath("/"+url.PathEscape(name)), nil, nil)
}

// ListDeployments returns deployments of a hosting project, newest first.
func (c *Client) ListDeployments(ctx context.Context, projectName string) ([]Deployment, error) {
	var deployments []Deployment
	path := c.projectsPath("/" + url.PathEscape(projectName) + "/deployments")
	if err := c.request(ctx, http.MethodGet, path, nil, &deployments); err != nil {
		return nil, err
	}
	return deployments, nil
}

// GetDeployment fetches one deployment record.
func (c *Client) GetDeployment(ctx context.Context, projectName, deploymentID string) (*Deployment, error) {
	var deployment Deployment
	path := c.projectsPath("/" + url.PathEscape(projectName) + "/deployments/" + url.PathEscape(deploymentID))
	if err := c.request(ctx, http.MethodGet, path, nil, &deployment); err != nil {
		return nil, err
	}
	return &deployment, nil
}

// RetryDeployment re-runs a failed deployment.
func (c *Client) RetryDeployment(ctx context.Context, projectName, deploymentID string) (*Deployment, error) {
	var deployment Deployment
	path := c.projectsPath("/" + url.PathEscape(projectName) + "/deployments/" + url.PathEscape(deploymentID) + "/retry")
	if err := c.request(ctx, http.MethodPost, path, nil, &deployment); err != nil {
		return nil, err
	}
	return &deployment, nil
}

// RollbackDeployment promotes an earlier deployment back to production.
func (c *Client) RollbackDeployment(ctx context.Context, projectName, deploymentID string) (*Deployment, error) {
	var deployment Deployment
	path := c.projectsPath("/" + url.PathEscape(projectName) + "/deployments/" + url.PathEscape(deploymentID) + "/rollback")
	if err := c.request(ctx, http.MethodPost, path, nil, &deployment); err != nil {
		return nil, err
	}
	return &deployment, nil
}

// CreateDeployment uploads a file set as a direct-upload deployment. Each
// file is content-addressed by the sha256 of its bytes; the manifest maps
// /path to hash and one blob part is sent per unique hash, which lets the
// provider skip files unchanged since the previous deployment.
func (c *Client) CreateDeployment(ctx context.Context, projectName string, files map[string]string) (*Deployment, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("deployment file set is empty")
	}

	manifest := make(map[string]string, len(files))
	blobs := make(map[string]string, len(files))
	for path, content := range files {
		sum := sha256.Sum256([]byte(content))
		hash := hex.EncodeToString(sum[:])
		manifest["/"+path] = hash
		blobs[hash] = content
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	hashes := make([]string, 0, len(blobs))
	for hash := range blobs {
		hashes = append(hashes, hash)
	}
	sort.Strings(hashes)
	for _, hash := range hashes {
		part, err := writer.CreateFormFile(hash, hash)
		if err != nil {
			return nil, fmt.Errorf("build upload part: %w", err)
		}
		if _, err := io.WriteString(part, blobs[hash]); err != nil {
			return nil, fmt.Errorf("write upload part: %w", err)
		}
	}

	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := writer.WriteField("manifest", string(manifestJSON)); err != nil {
		return nil, fmt.Errorf("write manifest field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize upload body: %w", err)
	}

	path := c.projectsPath("/" + url.PathEscape(projectName) + "/deployments")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload deployment: %w", err)
	}
	defer resp.Body.Close()

	var deployment Deployment
	if err := c.decode(resp, &deployment); err != nil {
		return nil, err
	}
	if c.logger != nil {
		c.logger.Info("deployment uploaded", "project", projectName, "files", len(files), "blobs", len(blobs), "url", deployment.URL)
	}
	return &deployment, nil
}

// AddCustomDomain attaches a domain to a hosting project.
func (c *Client) AddCustomDomain(ctx context.Context, projectName, domainName string) (*CustomDomain, error) {
	var attached CustomDomain
	path := c.projectsPath("/" + url.PathEscape(projectName) + "/domains")
	body := map[string]string{"name": domainName}
	if err := c.request(ctx, http.MethodPost, path, body, &attached); err != nil {
		return nil, err
	}
	return &attached, nil
}

// RemoveCustomDomain detaches a domain from a hosting project.
func (c *Client) RemoveCustomDomain(ctx context.Context, projectName, domainName string) error {
	path := c.projectsPath("/" + url.PathEscape(projectName) + "/domains/" + url.PathEscape(domainName))
	return c.request(ctx, http.MethodDelete, path, nil, nil)
}

// ListCustomDomains returns the domains attached to a hosting project.
func (c *Client) ListCustomDomains(ctx context.Context, projectName string) ([]CustomDomain, error) {
	var domains []CustomDomain
	path := c.projectsPath("/" + url.PathEscape(projectName) + "/domains")
	if err := c.request(ctx, http.MethodGet, path, nil, &domains); err != nil {
		return nil, err
	}
	return domains, nil
}

// FindZoneByName resolves the registrable root of domainName (its last two
// labels) to a zone. A nil zone means the domain is not managed by this
// provider account.
func (c *Client) FindZoneByName(ctx context.Context, domainName string) (*Zone, error) {
	root := RegistrableRoot(domainName)
	var zones []Zone
	if err := c.request(ctx, http.MethodGet, "/zones?name="+url.QueryEscape(root), nil, &zones); err != nil {
		return nil, err
	}
	if len(zones) == 0 {
		return nil, nil
	}
	return &zones[0], nil
}

// ListDNSRecords returns all records in a zone.
func (c *Client) ListDNSRecords(ctx context.Context, zoneID string) ([]DNSRecord, error) {
	var records []DNSRecord
	path := "/zones/" + url.PathEscape(zoneID) + "/dns_records"
	if err := c.request(ctx, http.MethodGet, path, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// CreateDNSRecord adds a record to a zone. Proxying defaults to enabled and
// TTL to automatic, matching the provider's proxy/CDN expectations.
func (c *Client) CreateDNSRecord(ctx context.Context, zoneID string, input CreateRecordInput) (*DNSRecord, error) {
	if input.Proxied == nil {
		proxied := true
		input.Proxied = &proxied
	}
	if input.TTL == 0 {
		input.TTL = 1
	}
	var record DNSRecord
	path := "/zones/" + url.PathEscape(zoneID) + "/dns_records"
	if err := c.request(ctx, http.MethodPost, path, input, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// DeleteDNSRecord removes a record from a zone.
func (c *Client) DeleteDNSRecord(ctx context.Context, zoneID, recordID string) error {
	path := "/zones/" + url.PathEscape(zoneID) + "/dns_records/" + url.PathEscape(recordID)
	return c.request(ctx, http.MethodDelete, path, nil, nil)
}

// RegistrableRoot returns the last two labels of a domain name, the unit the
// provider keys zones on.
func RegistrableRoot(domainName string) string {
	parts := strings.Split(strings.TrimSuffix(strings.ToLower(domainName), "."), ".")
	if len(parts) <= 2 {
		return strings.Join(parts, ".")
	}
	return strings.Join(parts[len(parts)-2:], ".")
}
