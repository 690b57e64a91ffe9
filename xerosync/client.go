package xerosync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// poster is what the exporter needs from Xero. The HTTP client below is the
// real implementation; tests substitute a fake.
type poster interface {
	PostTimesheet(ctx context.Context, sheet xeroTimesheet) error
	PostInvoice(ctx context.Context, invoice xeroInvoice) error
}

type xeroClient struct {
	baseURL     string
	accessToken string
	tenantId    string
	http        *http.Client
	limiter     <-chan time.Time
}

func newXeroClient() (*xeroClient, error) {
	baseURL := strings.TrimSpace(os.Getenv("XERO_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.xero.com"
	}
	accessToken := strings.TrimSpace(os.Getenv("XERO_ACCESS_TOKEN"))
	if accessToken == "" {
		return nil, errors.New("xero access token is empty")
	}
	tenantId := strings.TrimSpace(os.Getenv("XERO_TENANT_ID"))
	if tenantId == "" {
		return nil, errors.New("xero tenant id is empty")
	}
	rateLimitPerMin := int64(55)
	if v := strings.TrimSpace(os.Getenv("XERO_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	timeoutSec := int64(15)
	if v := strings.TrimSpace(os.Getenv("XERO_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			timeoutSec = n
		}
	}

	return &xeroClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		tenantId:    tenantId,
		http:        &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		limiter:     time.Tick(interval),
	}, nil
}

func (c *xeroClient) PostTimesheet(ctx context.Context, sheet xeroTimesheet) error {
	return c.postJSON(ctx, "/payroll.xro/1.0/Timesheets", sheet)
}

func (c *xeroClient) PostInvoice(ctx context.Context, invoice xeroInvoice) error {
	return c.postJSON(ctx, "/api.xro/2.0/Invoices", invoice)
}

func (c *xeroClient) postJSON(ctx context.Context, path string, payload any) error {
	<-c.limiter

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Xero-Tenant-Id", c.tenantId)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := strings.TrimSpace(string(respBody))
		if len(excerpt) > 300 {
			excerpt = excerpt[:300]
		}
		return fmt.Errorf("xero api error %d: %s", resp.StatusCode, excerpt)
	}
	return nil
}
