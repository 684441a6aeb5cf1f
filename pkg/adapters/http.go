package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"text/template"
	"time"

	"github.com/tidwall/gjson"

	"github.com/quantfold/pricecast/pkg/httpx"
	"github.com/quantfold/pricecast/pkg/timeseries"
	pricecasttls "github.com/quantfold/pricecast/pkg/tls"
)

// HTTPAdapter is a generic HTTP adapter that can call any REST API
// returning JSON and extract a daily close history using JSON path
// expressions.
//
// It supports:
//   - Configurable HTTP method (GET, POST, etc.)
//   - Template-based URL, body, and headers with variables:
//     {{.Instrument}}, {{.LookbackDays}}, {{.Start}}, {{.End}},
//     {{.StartRFC3339}}, {{.EndRFC3339}}
//   - gjson path extraction for dates and closing prices
//   - Flexible date parsing (RFC3339, Unix seconds, Unix milliseconds,
//     or a custom Go layout)
//
// Example configuration for a quotes API:
//
//	adapter := &HTTPAdapter{
//	    URL: "https://api.example.com/quotes/{{.Instrument}}/daily",
//	    Headers: map[string]string{
//	        "Authorization": "Bearer {{.Token}}",
//	    },
//	    ClosePath: "candles.#.close",
//	    DatePath:  "candles.#.date",
//	}
type HTTPAdapter struct {
	// URL is the endpoint to call (required). May use template variables.
	URL string

	// Method is the HTTP method. Defaults to GET if empty.
	Method string

	// Headers are custom HTTP headers to include in the request. Values
	// can use template variables like {{.Token}}.
	Headers map[string]string

	// Body is the request body template for POST/PUT.
	Body string

	// ClosePath is the gjson path to the closing prices. Use "#" for
	// arrays, e.g. "candles.#.close".
	ClosePath string

	// DatePath is the gjson path to the dates. Must yield the same number
	// of elements as ClosePath.
	DatePath string

	// DateFormat specifies how to parse dates:
	//   "rfc3339"    - RFC3339 strings (default)
	//   "unix"       - Unix seconds
	//   "unix_milli" - Unix milliseconds
	//   anything else is treated as a Go time layout, e.g. "2006-01-02"
	DateFormat string

	// HTTPClient is optional; if nil a client is built from TLS and
	// Timeout.
	HTTPClient *http.Client

	// TLS enables mutual TLS toward the upstream API.
	TLS pricecasttls.Config

	// Timeout bounds each request when HTTPClient is nil. Defaults to
	// 10 seconds.
	Timeout time.Duration

	// TemplateVars are custom variables available in URL, Body, and
	// Headers templates. Use this to pass tokens, API keys, etc.
	TemplateVars map[string]string
}

func (h *HTTPAdapter) Name() string { return "http" }

// Collect implements Adapter. It calls the configured endpoint and
// extracts the close history using the configured JSON paths.
func (h *HTTPAdapter) Collect(ctx context.Context, instrument string, lookbackDays int) (*timeseries.Series, error) {
	if h.URL == "" {
		return nil, errors.New("http adapter: URL is required")
	}
	if h.ClosePath == "" || h.DatePath == "" {
		return nil, errors.New("http adapter: ClosePath and DatePath are required")
	}

	now := time.Now().UTC().Truncate(24 * time.Hour)
	start := now
	if lookbackDays > 0 {
		start = now.AddDate(0, 0, -lookbackDays)
	}

	templateData := map[string]any{
		"Instrument":   instrument,
		"LookbackDays": lookbackDays,
		"Start":        start.Unix(),
		"End":          now.Unix(),
		"StartRFC3339": start.Format(time.RFC3339),
		"EndRFC3339":   now.Format(time.RFC3339),
	}
	for k, v := range h.TemplateVars {
		templateData[k] = v
	}

	url, err := renderTemplate(h.URL, templateData)
	if err != nil {
		return nil, fmt.Errorf("http adapter: render url template: %w", err)
	}

	method := h.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if h.Body != "" {
		rendered, err := renderTemplate(h.Body, templateData)
		if err != nil {
			return nil, fmt.Errorf("http adapter: render body template: %w", err)
		}
		bodyReader = bytes.NewBufferString(rendered)
	}

	cli := h.HTTPClient
	if cli == nil {
		cli, err = httpx.NewClient(h.TLS, h.Timeout)
		if err != nil {
			return nil, fmt.Errorf("http adapter: build client: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("http adapter: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for key, value := range h.Headers {
		rendered, err := renderTemplate(value, templateData)
		if err != nil {
			return nil, fmt.Errorf("http adapter: render header %s: %w", key, err)
		}
		req.Header.Set(key, rendered)
	}

	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http adapter: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http adapter: status %d: %s", resp.StatusCode, string(body))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http adapter: read response: %w", err)
	}

	closes := gjson.GetBytes(respBody, h.ClosePath)
	dates := gjson.GetBytes(respBody, h.DatePath)
	if !closes.Exists() {
		return nil, fmt.Errorf("http adapter: close path %q not found in response", h.ClosePath)
	}
	if !dates.Exists() {
		return nil, fmt.Errorf("http adapter: date path %q not found in response", h.DatePath)
	}

	closeArray := closes.Array()
	dateArray := dates.Array()
	if len(closeArray) != len(dateArray) {
		return nil, fmt.Errorf("http adapter: close count (%d) != date count (%d)", len(closeArray), len(dateArray))
	}
	if len(closeArray) == 0 {
		return nil, fmt.Errorf("http adapter: response holds no observations for %q", instrument)
	}

	type point struct {
		date  time.Time
		close float64
	}
	points := make([]point, 0, len(closeArray))
	for i := range closeArray {
		date, err := h.parseDate(dateArray[i])
		if err != nil {
			return nil, fmt.Errorf("http adapter: parse date[%d]: %w", i, err)
		}
		points = append(points, point{date: date.UTC(), close: closeArray[i].Float()})
	}

	sort.Slice(points, func(i, j int) bool { return points[i].date.Before(points[j].date) })

	timestamps := make([]time.Time, len(points))
	values := make([]float64, len(points))
	for i, p := range points {
		timestamps[i] = p.date
		values[i] = p.close
	}

	series, err := timeseries.New(timestamps, values)
	if err != nil {
		return nil, fmt.Errorf("http adapter: %w", err)
	}
	return clipLookback(series, lookbackDays), nil
}

func (h *HTTPAdapter) parseDate(value gjson.Result) (time.Time, error) {
	format := h.DateFormat
	if format == "" {
		format = "rfc3339"
	}

	switch format {
	case "rfc3339":
		return time.Parse(time.RFC3339, value.String())
	case "unix":
		return time.Unix(int64(value.Float()), 0).UTC(), nil
	case "unix_milli":
		return time.UnixMilli(int64(value.Float())).UTC(), nil
	default:
		return time.Parse(format, value.String())
	}
}

// renderTemplate renders a text template with the given data. Strings
// without template markers pass through untouched.
func renderTemplate(tmplStr string, data map[string]any) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
