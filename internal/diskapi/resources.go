package diskapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

const listFields = "name,path,type,modified," +
	"_embedded.items.name,_embedded.items.type,_embedded.items.path,_embedded.items.modified,_embedded.items.size," +
	"_embedded.total,_embedded.limit,_embedded.offset,_embedded.path"

// List returns the resource at path with up to limit children starting at offset.
// A missing path yields ErrNotFound.
func (c *Client) List(ctx context.Context, path string, offset, limit int) (*Resource, error) {
	var res Resource
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("path", path).
		SetQueryParam("offset", strconv.Itoa(offset)).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetQueryParam("sort", "name").
		SetQueryParam("fields", listFields).
		Get(v1Resources)

	if err == nil && resp.GetStatusCode() == http.StatusOK {
		if err := resp.UnmarshalJson(&res); err != nil {
			return nil, fmt.Errorf("diskapi: list %q: decode: %w", path, err)
		}
		return &res, nil
	}

	return nil, handleAPIError(resp, err, fmt.Sprintf("list %q", path))
}

// CreateDir creates a single directory. The parent must already exist.
func (c *Client) CreateDir(ctx context.Context, path string) (DirStatus, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("path", path).
		Put(v1Resources)

	if err == nil {
		switch resp.GetStatusCode() {
		case http.StatusCreated, http.StatusOK:
			return DirCreated, nil
		case http.StatusConflict:
			return DirExists, nil
		}
	}

	return DirCreated, handleAPIError(resp, err, fmt.Sprintf("create dir %q", path))
}

// Delete removes a file or a directory with all its descendants. Large
// deletes are answered asynchronously with an operation link to poll.
func (c *Client) Delete(ctx context.Context, path string, permanently bool) (*DeleteResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("path", path).
		SetQueryParam("permanently", strconv.FormatBool(permanently)).
		Delete(v1Resources)

	if err == nil {
		switch resp.GetStatusCode() {
		case http.StatusNoContent, http.StatusOK:
			return &DeleteResult{Status: DeleteDone}, nil
		case http.StatusNotFound:
			return &DeleteResult{Status: DeleteNotFound}, nil
		case http.StatusAccepted:
			var link Link
			if err := resp.UnmarshalJson(&link); err != nil {
				return nil, fmt.Errorf("diskapi: delete %q: decode operation: %w", path, err)
			}
			if link.Href == "" {
				return nil, fmt.Errorf("diskapi: delete %q: %w", path, ErrMalformedLink)
			}
			return &DeleteResult{Status: DeletePending, Operation: &link}, nil
		}
	}

	return nil, handleAPIError(resp, err, fmt.Sprintf("delete %q", path))
}
