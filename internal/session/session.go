// Package session builds the read-only request context shared by every endpoint call in a run.
package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// DefaultUserAgent identifies the client to the validation endpoint.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// Identity holds the static identifying headers sent with every call.
type Identity struct {
	Origin    string
	Referer   string
	UserAgent string
	TenantID  string
}

// Attribute is one session key/value pair in document order.
type Attribute struct {
	Key   string
	Value string
}

// Context is the composed header set for one run. It is never mutated after Build.
type Context struct {
	headers http.Header
	cookie  string
}

// Build parses the serialized session mapping and composes the request headers.
// It returns nil when the blob is absent, empty, or unparsable.
func Build(blob string, identity Identity) *Context {
	attrs, err := ParseAttributes(blob)
	if err != nil || len(attrs) == 0 {
		return nil
	}
	cookie := CookieString(attrs)

	userAgent := identity.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	headers := make(http.Header)
	headers.Set("Accept", "application/json")
	headers.Set("Content-Type", "application/json")
	headers.Set("User-Agent", userAgent)
	if identity.Origin != "" {
		headers.Set("Origin", identity.Origin)
	}
	if identity.Referer != "" {
		headers.Set("Referer", identity.Referer)
	}
	if identity.TenantID != "" {
		headers.Set("X-Tenant-Id", identity.TenantID)
	}
	headers.Set("Cookie", cookie)
	return &Context{headers: headers, cookie: cookie}
}

// Cookie returns the serialized session field.
func (c *Context) Cookie() string {
	return c.cookie
}

// Header returns a copy of the composed headers.
func (c *Context) Header() http.Header {
	return c.headers.Clone()
}

// Apply sets the composed headers on req.
func (c *Context) Apply(req *http.Request) {
	for key, values := range c.headers {
		req.Header[key] = append([]string(nil), values...)
	}
}

// ParseAttributes decodes a JSON object into attributes, keeping the key order of the document.
// String values are used verbatim; other scalars keep their JSON text. A repeated key keeps
// its first position and takes the last value.
func ParseAttributes(blob string) ([]Attribute, error) {
	blob = strings.TrimSpace(blob)
	if blob == "" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(blob))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("session attributes must be a JSON object")
	}

	var attrs []Attribute
	index := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		value, err := attributeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("session attribute %q: %w", key, err)
		}
		if i, ok := index[key]; ok {
			attrs[i].Value = value
			continue
		}
		index[key] = len(attrs)
		attrs = append(attrs, Attribute{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after session attributes")
	}
	return attrs, nil
}

// CookieString joins attributes as key=value pairs separated by "; ".
func CookieString(attrs []Attribute) string {
	parts := make([]string, len(attrs))
	for i, attr := range attrs {
		parts[i] = attr.Key + "=" + attr.Value
	}
	return strings.Join(parts, "; ")
}

func attributeValue(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("missing value")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("nested values are not supported")
	default:
		return string(trimmed), nil
	}
}
