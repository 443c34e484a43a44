package cdp

import (
	"github.com/chromedp/cdproto/network"

	"github.com/odvcencio/reqguard/pkg/request"
)

// NetworkClassifier classifies requests from DevTools network events. It sees
// every request the page sends, including navigations that unload the page.
type NetworkClassifier struct {
	*request.Recorder
}

// NewNetworkClassifier returns a classifier with an idle window.
func NewNetworkClassifier() *NetworkClassifier {
	return &NetworkClassifier{Recorder: request.NewRecorder(nil)}
}

// HandleEvent records a request event. It is registered with chromedp.ListenTarget
// and runs on the event loop, so it must not block.
func (c *NetworkClassifier) HandleEvent(ev any) {
	sent, ok := ev.(*network.EventRequestWillBeSent)
	if !ok || sent.Request == nil {
		return
	}
	// Redirect hops reuse the request ID of the request already recorded.
	if sent.RedirectResponse != nil {
		return
	}
	c.Record(Classify(sent.Type), sent.Request.URL)
}

// Classify maps a DevTools resource type to a request kind. Documents are
// page-level requests; XHR and fetch are asynchronous; subresources are not
// attributed to the action.
func Classify(resourceType network.ResourceType) request.Kind {
	switch resourceType {
	case network.ResourceTypeDocument:
		return request.HTTP
	case network.ResourceTypeXHR, network.ResourceTypeFetch:
		return request.XHR
	default:
		return request.None
	}
}
