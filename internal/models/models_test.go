package models

import (
	"testing"
	"time"
)

func TestDecodeBody(t *testing.T) {
	body := map[string]any{
		"url":     "https://example.com/health",
		"method":  "GET",
		"headers": []any{map[string]any{"name": "Accept", "value": "application/json"}},
	}

	var params struct {
		URL     string `json:"url"`
		Method  string `json:"method"`
		Headers []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
	}
	if err := DecodeBody(body, &params); err != nil {
		t.Fatalf("DecodeBody: %v", err)
	}
	if params.URL != "https://example.com/health" || params.Method != "GET" {
		t.Errorf("url/method = %q/%q", params.URL, params.Method)
	}
	if len(params.Headers) != 1 || params.Headers[0].Name != "Accept" {
		t.Errorf("headers = %+v", params.Headers)
	}
}

func TestEffectiveTimeout(t *testing.T) {
	testCases := []struct {
		name    string
		timeout string
		want    time.Duration
	}{
		{"unset falls back", "", 30 * time.Second},
		{"invalid falls back", "1x", 30 * time.Second},
		{"explicit timeout", "5s", 5 * time.Second},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := Monitor{Name: "m", Type: TypeHTTP, Timeout: tc.timeout}
			if got := m.EffectiveTimeout(30 * time.Second); got != tc.want {
				t.Errorf("EffectiveTimeout = %v, want %v", got, tc.want)
			}
		})
	}
}
