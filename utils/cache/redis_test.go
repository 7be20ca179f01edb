package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRedisCacheRejectsBadURL(t *testing.T) {
	for _, url := range []string{"", "localhost:6379", "http://localhost:6379"} {
		_, err := NewRedisCache(url)
		require.Error(t, err, url)
	}
}
