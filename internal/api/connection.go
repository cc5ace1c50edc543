// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"io"
	"net/http"
	"strings"
)

// ValidateConnection checks that the server is reachable and accepts the key.
//
// An empty generate request is sent: the backend rejects it with 400 after
// authenticating, so 400 counts as success.
func (c *Client) ValidateConnection(ctx context.Context) error {
	resp, err := c.send(ctx, http.MethodPost, generatePath, nil, struct{}{})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299,
		resp.StatusCode == http.StatusBadRequest:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseSize))
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return &RequestError{Status: resp.StatusCode, Message: "connection check", Cause: ErrUnauthorized}
	case resp.StatusCode == http.StatusNotFound:
		return &RequestError{Status: resp.StatusCode, Message: "connection check", Cause: ErrEndpointNotFound}
	default:
		err := decodeError(resp)
		if reqErr, ok := err.(*RequestError); ok {
			reqErr.Message = "connection check: " + strings.TrimSpace(reqErr.Message)
		}
		return err
	}
}
