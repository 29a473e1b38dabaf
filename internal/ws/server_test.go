package ws

import (
	"net/http/httptest"
	"testing"
)

func TestRemoteIP(t *testing.T) {
	cases := []struct {
		name      string
		forwarded string
		remote    string
		want      string
	}{
		{"direct", "", "203.0.113.7:52113", "203.0.113.7"},
		{"forwarded", "198.51.100.4", "10.0.0.1:80", "198.51.100.4"},
		{"forwarded chain", "198.51.100.4, 10.0.0.2", "10.0.0.1:80", "198.51.100.4"},
		{"forwarded with spaces", "  198.51.100.4  ", "10.0.0.1:80", "198.51.100.4"},
		{"no port", "", "203.0.113.7", "203.0.113.7"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			r.RemoteAddr = tc.remote
			if tc.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if got := remoteIP(r); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
