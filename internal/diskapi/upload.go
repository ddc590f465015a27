package diskapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// UploadLink requests an upload handle for path. A response without href is
// reported as ErrMalformedLink.
func (c *Client) UploadLink(ctx context.Context, path string, overwrite bool) (*Link, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("path", path).
		SetQueryParam("overwrite", strconv.FormatBool(overwrite)).
		Get(v1ResourcesUpload)

	if err == nil && resp.GetStatusCode() == http.StatusOK {
		var link Link
		if err := resp.UnmarshalJson(&link); err != nil {
			return nil, fmt.Errorf("diskapi: upload link %q: decode: %w", path, err)
		}
		if link.Href == "" {
			return nil, fmt.Errorf("diskapi: upload link %q: %w", path, ErrMalformedLink)
		}
		return &link, nil
	}

	return nil, handleAPIError(resp, err, fmt.Sprintf("upload link %q", path))
}

// PutFile streams body to an upload handle obtained from UploadLink. The
// request carries no Authorization header and no deadline besides ctx.
func (c *Client) PutFile(ctx context.Context, href string, body io.Reader, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	resp, err := c.upload.R().
		SetContext(ctx).
		SetHeader("Content-Type", contentType).
		SetBody(body).
		Put(href)

	if err == nil {
		switch resp.GetStatusCode() {
		case http.StatusCreated, http.StatusAccepted, http.StatusOK:
			return nil
		}
	}

	return handleAPIError(resp, err, "put file")
}
