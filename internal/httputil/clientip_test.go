package httputil

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trustProxy bool
		expectedIP string
	}{
		{
			name:       "X-Forwarded-For first hop when trusted",
			headers:    map[string]string{"X-Forwarded-For": "  198.51.100.7 , 203.0.113.9"},
			remoteAddr: "10.0.0.1:1234",
			trustProxy: true,
			expectedIP: "198.51.100.7",
		},
		{
			name:       "X-Forwarded-For ignored when untrusted",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7"},
			remoteAddr: "10.0.0.1:1234",
			expectedIP: "10.0.0.1",
		},
		{
			name:       "X-Real-IP used without XFF",
			headers:    map[string]string{"X-Real-IP": "2001:db8::2"},
			remoteAddr: "10.0.0.1:1234",
			trustProxy: true,
			expectedIP: "2001:db8::2",
		},
		{
			name:       "XFF wins over X-Real-IP",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.77", "X-Real-IP": "203.0.113.200"},
			trustProxy: true,
			expectedIP: "198.51.100.77",
		},
		{
			name:       "bracketed IPv6 RemoteAddr",
			remoteAddr: "[2001:db8::5]:8443",
			expectedIP: "2001:db8::5",
		},
		{
			name:       "malformed RemoteAddr returned raw",
			remoteAddr: "not_an_ip_port",
			expectedIP: "not_an_ip_port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.expectedIP, ClientIP(r, tt.trustProxy))
		})
	}
}
