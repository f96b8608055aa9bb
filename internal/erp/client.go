package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jesses-code-adventures/progress/internal/logger"
	"github.com/jesses-code-adventures/progress/internal/models"
	"github.com/jesses-code-adventures/progress/internal/utils"
)

const directInvoiceConnector = "FbDirectInvoice"

// InvoiceDefaults are the fixed line fields AFAS requires on a direct invoice.
type InvoiceDefaults struct {
	VATCode  string
	ItemCode string
	Unit     string
}

type ClientConfig struct {
	BaseURL    string
	Token      string
	PageSize   int
	Timeout    time.Duration
	HTTPClient *http.Client
	Invoice    InvoiceDefaults
}

// Client talks to the AFAS Profit REST connectors.
type Client struct {
	baseURL    string
	token      string
	pageSize   int
	httpClient *http.Client
	invoice    InvoiceDefaults
	log        zerolog.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("AFAS base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid AFAS base URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		pageSize:   pageSize,
		httpClient: httpClient,
		invoice:    cfg.Invoice,
		log:        logger.WithComponent("afas"),
	}, nil
}

type rowsResponse struct {
	Rows []Row `json:"rows"`
}

// FetchRows reads every row of a GetConnector, paging with skip/take until a
// short page comes back.
func (c *Client) FetchRows(ctx context.Context, connector string, filter *Filter) ([]Row, error) {
	var all []Row
	for skip := 0; ; skip += c.pageSize {
		page, err := c.fetchPage(ctx, connector, filter, skip)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < c.pageSize {
			break
		}
	}

	c.log.Debug().
		Str("connector", connector).
		Int("rows", len(all)).
		Msg("Fetched connector rows")

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, connector string, filter *Filter, skip int) ([]Row, error) {
	params := url.Values{}
	params.Set("skip", strconv.Itoa(skip))
	params.Set("take", strconv.Itoa(c.pageSize))
	if filter != nil && filter.Field != "" {
		params.Set("filterfieldids", filter.Field)
		params.Set("filtervalues", filter.Value)
		params.Set("operatortypes", "1")
	}

	target := fmt.Sprintf("%s/%s?%s", c.baseURL, strings.TrimLeft(connector, "/"), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", connector, err)
	}
	c.setHeaders(req)

	c.log.Debug().Str("connector", connector).Int("skip", skip).Msg("Calling AFAS connector")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", connector, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", connector, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp, body)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyResponse
	}

	var decoded rowsResponse
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("invalid JSON from %s: %w", connector, err)
	}

	return decoded.Rows, nil
}

type directInvoiceFields struct {
	OrderDate   string `json:"OrDa"`
	ProjectCode string `json:"PrId"`
	PhaseCode   string `json:"PrSt"`
}

type directInvoiceLineFields struct {
	VATCode   string `json:"VaIt"`
	ItemCode  string `json:"ItCd"`
	Unit      string `json:"BiUn"`
	Quantity  string `json:"QuUn"`
	UnitPrice string `json:"Upri"`
}

// CreateInvoiceLine posts one FbDirectInvoice with a single line.
func (c *Client) CreateInvoiceLine(ctx context.Context, line InvoiceLine) (*models.InvoiceResult, error) {
	payload := map[string]any{
		"FbDirectInvoice": map[string]any{
			"Element": map[string]any{
				"Fields": directInvoiceFields{
					OrderDate:   line.Date.Format("2006-01-02"),
					ProjectCode: line.ProjectCode,
					PhaseCode:   line.PhaseCode,
				},
				"Objects": []any{
					map[string]any{
						"FbDirectInvoiceLines": map[string]any{
							"Element": map[string]any{
								"Fields": directInvoiceLineFields{
									VATCode:   c.invoice.VATCode,
									ItemCode:  c.invoice.ItemCode,
									Unit:      c.invoice.Unit,
									Quantity:  "1",
									UnitPrice: line.Amount.StringFixed(2),
								},
							},
						},
					},
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode invoice line: %w", err)
	}

	target := fmt.Sprintf("%s/%s", c.baseURL, directInvoiceConnector)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build invoice request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	c.log.Info().
		Str("project", line.ProjectCode).
		Str("phase", line.PhaseCode).
		Str("amount", line.Amount.StringFixed(2)).
		Msg("Creating direct invoice line")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoice request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read invoice response: %w", err)
	}

	result := &models.InvoiceResult{
		PhaseCode: line.PhaseCode,
		Amount:    line.Amount,
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(resp, respBody)
		result.Success = false
		result.Message = utils.OrDefault(apiErr.Message, "invoice line was rejected")
		result.Details = apiErr.Error()
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("phase", line.PhaseCode).
			Str("details", apiErr.Message).
			Msg("AFAS rejected invoice line")
		return result, nil
	}

	result.Success = true
	var decoded any
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		result.Message = "invoice line processed (invoice number could not be read)"
		result.Details = string(respBody)
		return result, nil
	}

	result.InvoiceNumber = utils.ToPtrNil(findInvoiceNumber(decoded))
	if result.InvoiceNumber != nil {
		result.Message = fmt.Sprintf("invoice line processed, invoice number %s", *result.InvoiceNumber)
	} else {
		result.Message = "invoice line processed (no invoice number returned)"
	}
	result.Details = string(respBody)
	return result, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "AfasToken "+c.token)
}

// findInvoiceNumber looks for LiIn in the response shapes AFAS has been seen
// to return for FbDirectInvoice.
func findInvoiceNumber(decoded any) string {
	root, ok := decoded.(map[string]any)
	if !ok {
		return ""
	}

	if results, ok := root["results"].(map[string]any); ok {
		switch v := results[directInvoiceConnector].(type) {
		case []any:
			for i := len(v) - 1; i >= 0; i-- {
				if s := stringField(v[i], "LiIn"); s != "" {
					return s
				}
			}
		case map[string]any:
			if s := stringField(v, "LiIn"); s != "" {
				return s
			}
		}
	}

	if results, ok := root["results"].([]any); ok && len(results) > 0 {
		if s := stringField(results[0], "LiIn"); s != "" {
			return s
		}
	}

	if inv, ok := root[directInvoiceConnector].(map[string]any); ok {
		if el, ok := inv["Element"].(map[string]any); ok {
			return stringField(el["Fields"], "LiIn")
		}
	}

	return ""
}

func stringField(v any, key string) string {
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	switch s := m[key].(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	}
	return ""
}

func newAPIError(resp *http.Response, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       string(body),
	}

	var payload struct {
		ExternalMessage string `json:"externalMessage"`
		Message         string `json:"message"`
		Error           any    `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Message = stringField(payload.Error, "message")
		if apiErr.Message == "" {
			apiErr.Message = stringField(map[string]any{"error": payload.Error}, "error")
		}
		if apiErr.Message == "" {
			apiErr.Message = payload.Message
		}
		if apiErr.Message == "" {
			apiErr.Message = payload.ExternalMessage
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	return apiErr
}

// IsAPIError reports whether err carries an AFAS HTTP error.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
