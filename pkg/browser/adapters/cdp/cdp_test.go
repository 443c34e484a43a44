package cdp

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/reqguard/pkg/request"
)

func TestClassify(t *testing.T) {
	tests := map[network.ResourceType]request.Kind{
		network.ResourceTypeDocument:   request.HTTP,
		network.ResourceTypeXHR:        request.XHR,
		network.ResourceTypeFetch:      request.XHR,
		network.ResourceTypeImage:      request.None,
		network.ResourceTypeScript:     request.None,
		network.ResourceTypeStylesheet: request.None,
	}
	for resourceType, want := range tests {
		assert.Equal(t, want, Classify(resourceType), resourceType.String())
	}
}

func TestNetworkClassifier_HandleEvent(t *testing.T) {
	ctx := context.Background()
	c := NewNetworkClassifier()

	c.HandleEvent(&network.EventRequestWillBeSent{Type: network.ResourceTypeXHR, Request: &network.Request{URL: "http://x/early"}})
	require.NoError(t, c.Arm(ctx))

	c.HandleEvent(&network.EventRequestWillBeSent{Type: network.ResourceTypeImage, Request: &network.Request{URL: "http://x/logo.png"}})
	c.HandleEvent(&network.EventRequestWillBeSent{Type: network.ResourceTypeFetch, Request: &network.Request{URL: "http://x/ajax"}})
	c.HandleEvent(&network.EventRequestWillBeSent{Type: network.ResourceTypeDocument, Request: &network.Request{URL: "http://x/?reload=1"}})
	c.HandleEvent(&network.EventRequestWillBeSent{
		Type:             network.ResourceTypeDocument,
		Request:          &network.Request{URL: "http://x/next"},
		RedirectResponse: &network.Response{Status: 302},
	})
	c.HandleEvent(&network.EventLoadingFinished{})
	c.HandleEvent(&network.EventRequestWillBeSent{Type: network.ResourceTypeXHR})

	obs, err := c.Observe(ctx)
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, request.XHR, obs[0].Kind)
	assert.Equal(t, "http://x/ajax", obs[0].URL)
	assert.Equal(t, request.HTTP, obs[1].Kind)

	require.NoError(t, c.Disarm(ctx))
	_, err = c.Observe(ctx)
	assert.ErrorIs(t, err, request.ErrWindowClosed)
}

func TestConfig(t *testing.T) {
	cfg := Config{NoSandbox: true, Flags: []string{"disable-gpu", "window-size=800,600"}}.withDefaults()
	assert.Equal(t, 30*time.Second, cfg.OperationTimeout)
	assert.True(t, cfg.NoSandbox)
	require.NoError(t, cfg.Validate())
	assert.NotEmpty(t, allocatorOptions(cfg))

	assert.Error(t, Config{OperationTimeout: -time.Second}.Validate())
	assert.Error(t, Config{Flags: []string{"=x"}}.Validate())
}

func TestDecodeResult(t *testing.T) {
	s, err := decodeResult([]byte(`"scheduled"`))
	require.NoError(t, err)
	assert.Equal(t, "scheduled", s)

	s, err = decodeResult([]byte(`[{"kind":"XHR"}]`))
	require.NoError(t, err)
	assert.Equal(t, `[{"kind":"XHR"}]`, s)

	s, err = decodeResult(nil)
	require.NoError(t, err)
	assert.Empty(t, s)
}
