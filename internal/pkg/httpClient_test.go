package client

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Timeout(t *testing.T) {
	c := HTTPClient(5 * time.Second)
	assert.Equal(t, 5*time.Second, c.Timeout)

	transport, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, transport.ResponseHeaderTimeout)
}

func TestHTTPClient_DefaultTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, HTTPClient(0).Timeout)
	assert.Equal(t, 30*time.Second, HTTPClient(-time.Second).Timeout)
}
