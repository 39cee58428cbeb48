package convert

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultPageRange bounds how many pages a single conversion covers.
// Zero means convert every page.
const DefaultPageRange = 50

// Converter turns a stored PDF into HTML. Implemented by Client against
// the ConvertAPI v2 service; tests substitute fakes.
type Converter interface {
	Convert(ctx context.Context, sourceURL string) (Result, error)
	Fetch(ctx context.Context, fileURL string) ([]byte, error)
}

// Result is one converted file. Exactly one of URL or Data is set: the
// service either stored the file and returned its location, or inlined
// the payload.
type Result struct {
	FileName string
	URL      string
	Data     []byte
}

// Client calls the ConvertAPI pdf-to-html endpoint.
type Client struct {
	apiKey     string
	baseURL    string
	pageRange  int
	httpClient *http.Client
}

// NewClient constructs a ConvertAPI client. pageRange limits conversion
// to the first N pages; pass 0 to convert all pages.
func NewClient(apiKey, baseURL string, pageRange int) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("CONVERTAPI_KEY is required")
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://v2.convertapi.com"
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		pageRange:  pageRange,
		httpClient: &http.Client{Timeout: 180 * time.Second},
	}, nil
}

type convertParameter struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

type convertRequest struct {
	Parameters []convertParameter `json:"Parameters"`
}

type convertResponse struct {
	ConversionCost int `json:"ConversionCost"`
	Files          []struct {
		FileName string `json:"FileName"`
		FileSize int64  `json:"FileSize"`
		URL      string `json:"Url"`
		FileData string `json:"FileData"`
	} `json:"Files"`
	Code    int    `json:"Code"`
	Message string `json:"Message"`
}

// Convert submits sourceURL for pdf-to-html conversion. CSS is embedded
// so the result is self-contained; images are kept as references so the
// relocation stage can claim them.
func (c *Client) Convert(ctx context.Context, sourceURL string) (Result, error) {
	params := []convertParameter{
		{Name: "File", Value: sourceURL},
		{Name: "EmbedCss", Value: true},
		{Name: "EmbedImages", Value: false},
		{Name: "StoreFile", Value: true},
	}
	if c.pageRange > 0 {
		params = append(params, convertParameter{Name: "PageRange", Value: fmt.Sprintf("1-%d", c.pageRange)})
	}
	payload, err := json.Marshal(convertRequest{Parameters: params})
	if err != nil {
		return Result{}, err
	}

	endpoint := c.baseURL + "/convert/pdf/to/html"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return Result{}, fmt.Errorf("convertapi request timeout: %w", err)
		}
		return Result{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, err
	}

	var parsed convertResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, fmt.Errorf("convertapi response parse: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := parsed.Message
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return Result{}, fmt.Errorf("convertapi request failed: status %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Files) == 0 {
		return Result{}, fmt.Errorf("convertapi response missing files")
	}

	file := parsed.Files[0]
	result := Result{FileName: file.FileName, URL: file.URL}
	if file.FileData != "" {
		data, err := base64.StdEncoding.DecodeString(file.FileData)
		if err != nil {
			return Result{}, fmt.Errorf("convertapi inline payload decode: %w", err)
		}
		result.Data = data
	}
	if result.URL == "" && len(result.Data) == 0 {
		return Result{}, fmt.Errorf("convertapi response has neither file url nor inline payload")
	}
	return result, nil
}

// Fetch downloads a converted file by its stored URL.
func (c *Client) Fetch(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("convertapi file download failed: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
