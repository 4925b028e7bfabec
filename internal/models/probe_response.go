package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrEmptyResponse is returned when the endpoint body decodes to an empty object.
var ErrEmptyResponse = errors.New("empty endpoint response")

// ErrorRecord is one entry of an endpoint error envelope.
type ErrorRecord struct {
	Message string `json:"message"`
}

// ErrorEnvelope carries the rejection reasons reported by the endpoint.
type ErrorEnvelope struct {
	Errors []ErrorRecord `json:"errors"`
}

// ProbeResponse is the decoded validation endpoint response. A nil Envelope is a plain
// acceptance; a non-nil Envelope (possibly with no records) is a rejection.
type ProbeResponse struct {
	Envelope *ErrorEnvelope
}

// Accepted reports whether the response carries no error envelope.
func (r *ProbeResponse) Accepted() bool {
	return r != nil && r.Envelope == nil
}

// ParseProbeResponse decodes an endpoint body. The envelope is considered present whenever
// the errorMessage key exists, even when its value is null or malformed.
func ParseProbeResponse(body []byte) (*ProbeResponse, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("endpoint response is not an object")
	}
	if len(doc) == 0 {
		return nil, ErrEmptyResponse
	}

	raw, ok := doc["errorMessage"]
	if !ok {
		return &ProbeResponse{}, nil
	}
	envelope := &ErrorEnvelope{}
	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		// Unexpected shapes still count as a rejection without readable messages.
		var decoded ErrorEnvelope
		if err := json.Unmarshal(raw, &decoded); err == nil {
			envelope = &decoded
		}
	}
	return &ProbeResponse{Envelope: envelope}, nil
}
