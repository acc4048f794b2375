package github

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIErrorDetection(t *testing.T) {
	t.Run("happy path: 404 detected through wrapping", func(t *testing.T) {
		err := newAPIError(404, "/orgs/ghost", []byte(`{"message":"Not Found"}`))
		wrapped := fmt.Errorf("not able to get organization: %w", err)

		assert.True(t, IsNotFound(wrapped))
		assert.False(t, IsUnauthorized(wrapped))
		assert.Contains(t, err.Error(), "Not Found")
	})

	t.Run("happy path: 401 and 403 are unauthorized", func(t *testing.T) {
		assert.True(t, IsUnauthorized(newAPIError(401, "/user", nil)))
		assert.True(t, IsUnauthorized(newAPIError(403, "/user", nil)))
		assert.False(t, IsNotFound(newAPIError(403, "/user", nil)))
	})

	t.Run("edge case: a plain error is neither", func(t *testing.T) {
		err := fmt.Errorf("dial tcp: connection refused")
		assert.False(t, IsNotFound(err))
		assert.False(t, IsUnauthorized(err))
	})

	t.Run("edge case: unparsable body keeps the status", func(t *testing.T) {
		err := newAPIError(502, "/orgs/x", []byte("<html>bad gateway</html>"))
		assert.Equal(t, 502, err.Status)
		assert.Contains(t, err.Error(), "502")
	})
}
