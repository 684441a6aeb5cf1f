package adapters

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantfold/pricecast/pkg/tls"
)

// New creates an adapter based on kind and a generic configuration map.
// This is the central extension point for adding new source types.
//
// Supported kinds:
//   - "csv": local CSV file of dated close records
//   - "http": generic JSON REST API
//
// Returns an error if kind is unknown or required fields are missing.
func New(kind string, config map[string]string) (Adapter, error) {
	switch kind {
	case "csv":
		return newCSV(config)
	case "http":
		return newHTTP(config)
	default:
		return nil, fmt.Errorf("unknown adapter kind: %s (must be csv or http)", kind)
	}
}

func newCSV(config map[string]string) (Adapter, error) {
	path := config["path"]
	if path == "" {
		return nil, fmt.Errorf("csv adapter requires 'path' config")
	}

	return &CSVAdapter{
		Path:         path,
		DateColumn:   config["dateColumn"],
		TickerColumn: config["tickerColumn"],
		CloseColumn:  config["closeColumn"],
		TypeColumn:   config["typeColumn"],
		TypeValue:    config["typeValue"],
		DateLayout:   config["dateLayout"],
	}, nil
}

func newHTTP(config map[string]string) (Adapter, error) {
	url := config["url"]
	if url == "" {
		return nil, fmt.Errorf("http adapter requires 'url' config")
	}
	closePath := config["closePath"]
	datePath := config["datePath"]
	if closePath == "" || datePath == "" {
		return nil, fmt.Errorf("http adapter requires 'closePath' and 'datePath' config")
	}

	adapter := &HTTPAdapter{
		URL:        url,
		Method:     config["method"],
		Body:       config["body"],
		ClosePath:  closePath,
		DatePath:   datePath,
		DateFormat: config["dateFormat"],
		TLS: tls.Config{
			Enabled:  config["tlsCertFile"] != "",
			CertFile: config["tlsCertFile"],
			KeyFile:  config["tlsKeyFile"],
			CAFile:   config["tlsCaFile"],
		},
	}

	if raw := config["timeout"]; raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("http adapter: invalid 'timeout': %w", err)
		}
		adapter.Timeout = timeout
	}

	if raw := config["headers"]; raw != "" {
		headers := map[string]string{}
		if err := json.Unmarshal([]byte(raw), &headers); err != nil {
			return nil, fmt.Errorf("http adapter: invalid 'headers' JSON: %w", err)
		}
		adapter.Headers = headers
	}
	if raw := config["templateVars"]; raw != "" {
		vars := map[string]string{}
		if err := json.Unmarshal([]byte(raw), &vars); err != nil {
			return nil, fmt.Errorf("http adapter: invalid 'templateVars' JSON: %w", err)
		}
		adapter.TemplateVars = vars
	}

	return adapter, nil
}
