package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// errNoResultURL is returned when a result document holds no usable URL.
var errNoResultURL = errors.New("no result url in resultJson")

// resultDocument is the JSON document embedded as a string in a task record.
type resultDocument struct {
	ResultURLs          []string `json:"resultUrls"`
	ResultWaterMarkURLs []string `json:"resultWaterMarkUrls"`
}

// ExtractResultURL decodes the provider's resultJson string and returns the
// first primary result URL, falling back to the first watermarked URL.
func ExtractResultURL(resultJSON string) (string, error) {
	if strings.TrimSpace(resultJSON) == "" {
		return "", errors.New("task record has no resultJson")
	}

	var doc resultDocument
	if err := json.Unmarshal([]byte(resultJSON), &doc); err != nil {
		return "", fmt.Errorf("parse resultJson: %w", err)
	}

	if u := firstURL(doc.ResultURLs); u != "" {
		return u, nil
	}
	if u := firstURL(doc.ResultWaterMarkURLs); u != "" {
		return u, nil
	}
	return "", errNoResultURL
}

func firstURL(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	return strings.TrimSpace(urls[0])
}
