package docai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Client calls the external document-understanding service over HTTP.
// Each processor (layout, form) is addressed by id; the service accepts
// raw document bytes and returns the parsed document JSON.
type Client struct {
	httpClient        *http.Client
	endpoint          string
	projectID         string
	location          string
	layoutProcessorID string
	formProcessorID   string
	apiKey            string
}

// NewClient builds a processing client. endpoint is the service base URL,
// e.g. "https://us-documentai.googleapis.com".
func NewClient(endpoint, projectID, location, layoutProcessorID, formProcessorID, apiKey string) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("document processor endpoint not set")
	}
	if layoutProcessorID == "" || formProcessorID == "" {
		return nil, fmt.Errorf("layout and form processor ids must both be set")
	}
	return &Client{
		httpClient:        &http.Client{Timeout: 2 * time.Minute},
		endpoint:          endpoint,
		projectID:         projectID,
		location:          location,
		layoutProcessorID: layoutProcessorID,
		formProcessorID:   formProcessorID,
		apiKey:            apiKey,
	}, nil
}

type processRequest struct {
	RawDocument rawDocument `json:"rawDocument"`
}

type rawDocument struct {
	Content  string `json:"content"`
	MimeType string `json:"mimeType"`
}

type layoutResponse struct {
	Document LayoutDocument `json:"document"`
}

type formResponse struct {
	Document FormDocument `json:"document"`
}

// Process submits the document to the layout processor and the form
// processor concurrently and returns both parsed outputs. The two
// processors are independent services, so one slow call does not
// serialize the other.
func (c *Client) Process(ctx context.Context, raw []byte, contentType string) (*LayoutDocument, *FormDocument, error) {
	if contentType == "" {
		contentType = "application/pdf"
	}

	var (
		layout layoutResponse
		form   formResponse
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := c.process(gctx, c.layoutProcessorID, raw, contentType)
		if err != nil {
			return fmt.Errorf("layout processor: %w", err)
		}
		if err := json.Unmarshal(body, &layout); err != nil {
			return fmt.Errorf("decode layout response: %w", err)
		}
		log.Printf("docai: layout processor complete (%d bytes)", len(body))
		return nil
	})
	g.Go(func() error {
		body, err := c.process(gctx, c.formProcessorID, raw, contentType)
		if err != nil {
			return fmt.Errorf("form processor: %w", err)
		}
		if err := json.Unmarshal(body, &form); err != nil {
			return fmt.Errorf("decode form response: %w", err)
		}
		log.Printf("docai: form processor complete (%d bytes)", len(body))
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return &layout.Document, &form.Document, nil
}

func (c *Client) process(ctx context.Context, processorID string, raw []byte, contentType string) ([]byte, error) {
	payload, err := json.Marshal(processRequest{
		RawDocument: rawDocument{
			Content:  base64.StdEncoding.EncodeToString(raw),
			MimeType: contentType,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/locations/%s/processors/%s:process",
		c.endpoint, c.projectID, c.location, processorID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("processor %s returned %d: %s", processorID, resp.StatusCode, truncate(string(body), 300))
	}
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
