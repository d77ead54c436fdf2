package eposclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultEndpoint is the CGI path Epson terminals post print jobs to.
const DefaultEndpoint = "/cgi-bin/epos/service.cgi"

const (
	defaultTimeout    = 30 * time.Second
	defaultPaperWidth = 576
	defaultThreshold  = 128
)

// ErrPrintFailed reports a response envelope with success="false".
var ErrPrintFailed = errors.New("print failed")

// Client talks to one ePOS print service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	endpoint   string
	deviceID   string
	paperWidth int
	threshold  uint8
}

// Option is a function that configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithEndpoint overrides the service CGI path.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithDeviceID sets the devid query parameter, matching how the Epson
// SDK addresses a named printer.
func WithDeviceID(id string) Option {
	return func(c *Client) {
		c.deviceID = id
	}
}

// WithPaperWidth sets the paper width in dots used when rasterizing
// images. The default is 576, an 80mm head.
func WithPaperWidth(width int) Option {
	return func(c *Client) {
		c.paperWidth = width
	}
}

// WithThreshold sets the gray cutoff below which pixels print black.
func WithThreshold(threshold uint8) Option {
	return func(c *Client) {
		c.threshold = threshold
	}
}

// WithInsecureTLS accepts self-signed certificates, which the proxy
// serves when HTTPS is enabled.
func WithInsecureTLS() Option {
	return func(c *Client) {
		c.httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
}

// New creates a client for the print service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		endpoint:   DefaultEndpoint,
		paperWidth: defaultPaperWidth,
		threshold:  defaultThreshold,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Result is the parsed response envelope.
type Result struct {
	Success bool
	Code    string
	Status  string
	Battery string
}

// Submit posts the document and parses the response envelope. A reachable
// service that reports a failed print returns both the Result and an error
// wrapping ErrPrintFailed.
func (c *Client) Submit(ctx context.Context, doc *Document) (*Result, error) {
	return c.post(ctx, doc.Build())
}

// PrintImage rasterizes img and submits it as a single-image job.
func (c *Client) PrintImage(ctx context.Context, img image.Image) (*Result, error) {
	doc := NewDocument()
	doc.AddImage(Rasterize(img, c.paperWidth, c.threshold))
	return c.Submit(ctx, doc)
}

// PrintFile decodes a PNG or JPEG file and prints it.
func (c *Client) PrintFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image file: %w", err)
	}

	return c.PrintImage(ctx, img)
}

// KickDrawer fires the cash drawer on pin 0 or 1 with a 100ms pulse.
func (c *Client) KickDrawer(ctx context.Context, drawer int) (*Result, error) {
	doc := NewDocument()
	doc.AddPulse(drawer, 100)
	return c.Submit(ctx, doc)
}

func (c *Client) post(ctx context.Context, body []byte) (*Result, error) {
	u := c.baseURL + c.endpoint
	if c.deviceID != "" {
		u += "?devid=" + url.QueryEscape(c.deviceID) + "&timeout=60000"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `""`)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach print service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	result, err := parseResult(data)
	if err != nil {
		// Without an envelope to go on, the transport status is the
		// best signal available.
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("print service answered status %d", resp.StatusCode)
		}
		return nil, err
	}

	if !result.Success {
		if result.Code != "" {
			return result, fmt.Errorf("%w: %s", ErrPrintFailed, result.Code)
		}
		return result, ErrPrintFailed
	}

	return result, nil
}

func parseResult(data []byte) (*Result, error) {
	var envelope struct {
		Body struct {
			Response *struct {
				Success string `xml:"success,attr"`
				Code    string `xml:"code,attr"`
				Status  string `xml:"status,attr"`
				Battery string `xml:"battery,attr"`
			} `xml:"response"`
		} `xml:"Body"`
	}

	if err := xml.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse response envelope: %w", err)
	}
	if envelope.Body.Response == nil {
		return nil, fmt.Errorf("response carried no ePOS envelope")
	}

	r := envelope.Body.Response
	return &Result{
		Success: r.Success == "true" || r.Success == "1",
		Code:    r.Code,
		Status:  r.Status,
		Battery: r.Battery,
	}, nil
}
