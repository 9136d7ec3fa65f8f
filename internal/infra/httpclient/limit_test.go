package httpclient

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestReadAllWithLimit(t *testing.T) {
	reply := `{"message":"hi"}`
	cases := []struct {
		name    string
		limit   int64
		tooBig  bool
		wantLen int
	}{
		{name: "exact fit", limit: int64(len(reply)), wantLen: len(reply)},
		{name: "roomy", limit: 1 << 10, wantLen: len(reply)},
		{name: "unbounded", limit: 0, wantLen: len(reply)},
		{name: "one byte short", limit: int64(len(reply)) - 1, tooBig: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ReadAllWithLimit(strings.NewReader(reply), tc.limit)
			if tc.tooBig {
				if !IsResponseTooLarge(err) {
					t.Fatalf("expected ResponseTooLargeError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tc.wantLen {
				t.Fatalf("read %d bytes, want %d", len(got), tc.wantLen)
			}
		})
	}
}

func TestIsResponseTooLargeSeesWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("call agent: %w", ResponseTooLargeError{Limit: 8})
	if !IsResponseTooLarge(wrapped) {
		t.Fatal("expected wrapped limit error to be detected")
	}
	if IsResponseTooLarge(errors.New("connection reset")) {
		t.Fatal("unrelated error detected as limit error")
	}
}

func TestValidateEndpointURL(t *testing.T) {
	cases := []struct {
		url  string
		opts URLValidationOptions
		ok   bool
	}{
		{url: "http://localhost:5678/webhook/abc", opts: URLValidationOptions{AllowLocalhost: true}, ok: true},
		{url: "http://localhost:5678/webhook/abc"},
		{url: "http://agents.localhost/hook"},
		{url: "http://10.0.0.4/hook"},
		{url: "http://10.0.0.4/hook", opts: URLValidationOptions{AllowPrivateNetworks: true}, ok: true},
		{url: "ftp://agents.example.com"},
		{url: "https:///missing-host"},
		{url: "  "},
		{url: "https://agents.example.com/hook", ok: true},
	}
	for _, tc := range cases {
		_, err := ValidateEndpointURL(tc.url, tc.opts)
		if tc.ok && err != nil {
			t.Fatalf("%q rejected: %v", tc.url, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q accepted", tc.url)
		}
	}
}
