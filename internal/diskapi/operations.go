package diskapi

import (
	"context"
	"fmt"
	"net/http"
)

// OperationStatus queries an asynchronous operation. A 202 answer is
// reported as pending regardless of the body.
func (c *Client) OperationStatus(ctx context.Context, href string) (OperationStatus, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(href)

	if err == nil {
		switch resp.GetStatusCode() {
		case http.StatusAccepted:
			return OperationPending, nil
		case http.StatusOK:
			var op operationResponse
			if err := resp.UnmarshalJson(&op); err != nil {
				return "", fmt.Errorf("diskapi: operation status: decode: %w", err)
			}
			switch OperationStatus(op.Status) {
			case OperationSuccess, OperationFailed, OperationPending:
				return OperationStatus(op.Status), nil
			}
			return "", fmt.Errorf("diskapi: operation status: unknown status %q", op.Status)
		}
	}

	return "", handleAPIError(resp, err, "operation status")
}
