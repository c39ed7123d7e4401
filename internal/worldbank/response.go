package worldbank

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// pageMeta is the first element of every paged response
type pageMeta struct {
	Page    flexInt `json:"page"`
	Pages   flexInt `json:"pages"`
	PerPage flexInt `json:"per_page"`
	Total   flexInt `json:"total"`
}

// flexInt accepts both 5 and "5"; the API is not consistent across endpoints.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	*f = flexInt(n)
	return nil
}

type idValue struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

// Row is one indicator value for a country and year as returned by the API
type Row struct {
	Indicator   idValue  `json:"indicator"`
	Country     idValue  `json:"country"`
	CountryISO3 string   `json:"countryiso3code"`
	Date        string   `json:"date"`
	Value       *float64 `json:"value"`
}

type apiMessage struct {
	ID    string `json:"id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// APIError is an error reported in the response body rather than the status
type APIError struct {
	Messages []apiMessage
}

func (e *APIError) Error() string {
	parts := make([]string, 0, len(e.Messages))
	for _, m := range e.Messages {
		switch {
		case m.Key != "" && m.Value != "":
			parts = append(parts, fmt.Sprintf("%s: %s", m.Key, m.Value))
		case m.Value != "":
			parts = append(parts, m.Value)
		default:
			parts = append(parts, m.Key)
		}
	}
	return "world bank api: " + strings.Join(parts, "; ")
}

// decodePage splits a response body into its metadata and rows. A body of the
// form [{"message": [...]}] is returned as *APIError.
func decodePage(body []byte) (*pageMeta, []Row, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(body, &parts); err != nil {
		return nil, nil, fmt.Errorf("decode response envelope: %w", err)
	}
	if len(parts) == 0 {
		return nil, nil, fmt.Errorf("empty response envelope")
	}

	var envelope struct {
		Message []apiMessage `json:"message"`
	}
	if err := json.Unmarshal(parts[0], &envelope); err == nil && len(envelope.Message) > 0 {
		return nil, nil, &APIError{Messages: envelope.Message}
	}

	var meta pageMeta
	if err := json.Unmarshal(parts[0], &meta); err != nil {
		return nil, nil, fmt.Errorf("decode page metadata: %w", err)
	}

	if len(parts) < 2 || bytes.Equal(bytes.TrimSpace(parts[1]), []byte("null")) {
		return &meta, nil, nil
	}

	var rows []Row
	if err := json.Unmarshal(parts[1], &rows); err != nil {
		return nil, nil, fmt.Errorf("decode rows: %w", err)
	}
	return &meta, rows, nil
}
