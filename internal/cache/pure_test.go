package cache

import (
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestCache_Key(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	tests := []struct {
		name  string
		opts  []Option
		parts []string
		want  string
	}{
		{"default namespace", nil, []string{lockSpace, "apikey:u1"}, "zeenbase:lock:apikey:u1"},
		{"custom namespace", []Option{WithNamespace("test")}, []string{settingsSpace, "current"}, "test:settings:current"},
		{"bare keys", []Option{WithNamespace("")}, []string{keyOwnerSpace, "abc"}, "apikey:owner:abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewFromClient(client, tt.opts...)
			if got := c.key(tt.parts...); got != tt.want {
				t.Errorf("key(%v) = %q, want %q", tt.parts, got, tt.want)
			}
		})
	}
}

func TestHashIP(t *testing.T) {
	t.Parallel()

	ips := []string{"192.168.1.1", "192.168.1.2", "::1", "2001:db8::1", ""}
	seen := make(map[string]string, len(ips))

	for _, ip := range ips {
		h := hashIP(ip)
		if len(h) != 16 {
			t.Errorf("hashIP(%q) length = %d, want 16", ip, len(h))
		}
		if h != hashIP(ip) {
			t.Errorf("hashIP(%q) is not deterministic", ip)
		}
		if other, ok := seen[h]; ok {
			t.Errorf("hashIP collision between %q and %q", ip, other)
		}
		seen[h] = ip
	}
}
