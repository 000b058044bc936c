package webhook

import (
	"net"
	"net/http"
	"time"
)

const (
	// ClientTimeout caps one delivery attempt end to end.
	ClientTimeout = 30 * time.Second
	// DialTimeout caps connection establishment.
	DialTimeout = 10 * time.Second
	// TLSHandshakeTimeout caps TLS negotiation.
	TLSHandshakeTimeout = 10 * time.Second
	// ResponseHeaderTimeout caps the wait for the receiver's status line.
	ResponseHeaderTimeout = 15 * time.Second
)

// userAgent identifies delivery requests to receivers.
const userAgent = "GateFlow-Webhook/1.0"

// NewHTTPClient builds the client used for webhook deliveries. Redirects
// are not followed: the target URL passed SSRF validation, a redirect
// target did not.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: ClientTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   TLSHandshakeTimeout,
			ResponseHeaderTimeout: ResponseHeaderTimeout,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Headers receivers use to authenticate deliveries.
const (
	HeaderSignature  = "X-GateFlow-Signature"
	HeaderTimestamp  = "X-GateFlow-Timestamp"
	HeaderDeliveryID = "X-GateFlow-Delivery-Id"
)

// HTTPHeaders carries the per-delivery header values.
type HTTPHeaders struct {
	Signature  string
	Timestamp  string
	DeliveryID string
}

// SetWebhookHeaders stamps a delivery request with the signature headers.
func SetWebhookHeaders(req *http.Request, headers HTTPHeaders) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, headers.Signature)
	req.Header.Set(HeaderTimestamp, headers.Timestamp)
	req.Header.Set(HeaderDeliveryID, headers.DeliveryID)
	req.Header.Set("User-Agent", userAgent)
}
