// Package diskapi is a client for the disk REST resource API: listing,
// directory creation, two-phase uploads and asynchronous deletes.
package diskapi

import (
	"errors"
	"strings"
	"time"

	"github.com/diskmirror/diskmirror/internal/version"
	"github.com/imroc/req/v3"
)

const (
	DefaultBaseURL        = "https://cloud-api.yandex.net"
	DefaultRequestTimeout = 60 * time.Second

	v1Resources       = "/v1/disk/resources"
	v1ResourcesUpload = "/v1/disk/resources/upload"
)

var (
	ErrNoToken   = errors.New("diskapi: access token missing")
	ErrNoBaseURL = errors.New("diskapi: base url missing")
)

// Config is the configuration for the Client
type Config struct {
	BaseURL        string        // BaseURL defaults to DefaultBaseURL
	Token          string        // Token is required
	RequestTimeout time.Duration // RequestTimeout defaults to DefaultRequestTimeout
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return ErrNoToken
	}
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return ErrNoBaseURL
	}
	return nil
}

// Client talks to the disk API. Every call blocks until the server answers;
// there are no automatic retries, the next sync cycle is the retry.
//
// Metadata calls are bounded by RequestTimeout. Uploads go through a second
// client without an overall deadline, since the body may take arbitrarily long
// to stream; they are only bounded by the caller's context.
type Client struct {
	http   *req.Client
	upload *req.Client
}

func New(cfg *Config) (*Client, error) {
	c := *cfg
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	httpClient := req.C().
		SetBaseURL(strings.TrimRight(c.BaseURL, "/")).
		SetTimeout(c.RequestTimeout).
		SetUserAgent(version.UserAgent()).
		SetCommonHeader("Accept", "application/json").
		SetCommonHeader("Authorization", "OAuth "+c.Token).
		SetCommonRetryCount(0).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	// upload hrefs point at a storage host that takes no OAuth header
	uploadClient := req.C().
		SetTimeout(0).
		SetUserAgent(version.UserAgent()).
		SetCommonRetryCount(0).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	return &Client{http: httpClient, upload: uploadClient}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.GetClient().CloseIdleConnections()
	c.upload.GetClient().CloseIdleConnections()
}
