package httpsrv

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecondsParam(t *testing.T) {
	d, err := SecondsParam(httptest.NewRequest("GET", "/x", nil), "lookback_time", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	d, err = SecondsParam(httptest.NewRequest("GET", "/x?lookback_time=1.5", nil), "lookback_time", 0)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	d, err = SecondsParam(httptest.NewRequest("GET", "/x?lookback_time=0", nil), "lookback_time", time.Minute)
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = SecondsParam(httptest.NewRequest("GET", "/x?lookback_time=-1", nil), "lookback_time", 0)
	assert.Error(t, err)
	_, err = SecondsParam(httptest.NewRequest("GET", "/x?lookback_time=soon", nil), "lookback_time", 0)
	assert.Error(t, err)
}
