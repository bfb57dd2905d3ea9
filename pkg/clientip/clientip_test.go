package clientip_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/appideasfinder/backend/pkg/clientip"
)

func TestGetIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr fallback",
			remoteAddr: "203.0.113.7:51234",
			want:       "203.0.113.7",
		},
		{
			name:       "x-forwarded-for first valid entry",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "garbage, 198.51.100.4, 10.0.0.2"},
			want:       "198.51.100.4",
		},
		{
			name:       "cloudflare header wins",
			remoteAddr: "10.0.0.1:80",
			headers: map[string]string{
				"CF-Connecting-IP": "192.0.2.10",
				"X-Forwarded-For":  "198.51.100.4",
			},
			want: "192.0.2.10",
		},
		{
			name:       "x-real-ip",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "198.51.100.9"},
			want:       "198.51.100.9",
		},
		{
			name:       "ipv6 with port",
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
		{
			name:       "invalid header falls through",
			remoteAddr: "203.0.113.7:51234",
			headers:    map[string]string{"X-Forwarded-For": "not-an-ip"},
			want:       "203.0.113.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientip.GetIP(req))
		})
	}
}
