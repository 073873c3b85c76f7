package platform

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Cookie is one entry of the exported browser cookie file. Extra fields the
// browser export carries (expiration, sameSite, ...) are ignored.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LoadCookies reads a browser cookie export (JSON array).
func LoadCookies(path string) ([]Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("parse cookies: %w", err)
	}
	return cookies, nil
}

// CookieHeader renders cookies as a single Cookie header value, also passed
// to the transcoder for authenticated stream inputs.
func CookieHeader(cookies []Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
