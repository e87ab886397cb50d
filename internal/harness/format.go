package harness

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/akshayaggarwal99/seobridge/internal/seoapi"
)

// FormatJSON renders the raw result indented by two spaces.
func FormatJSON(resp *seoapi.Response, _ Args) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("no response to format")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, resp.Result, "", "  "); err != nil {
		return "", fmt.Errorf("failed to format %s result: %w", resp.Method, err)
	}
	return buf.String(), nil
}
