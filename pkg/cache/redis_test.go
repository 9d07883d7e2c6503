package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-billing-api/pkg/config"
)

func TestOptions(t *testing.T) {
	opts := Options(config.RedisConfig{Host: "cache.internal", Port: 6380, Password: "secret", DB: 2})

	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, pingTimeout, opts.DialTimeout)
}

func TestNewRedisUnreachable(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{Host: "127.0.0.1", Port: 1})
	assert.Error(t, err)
}
