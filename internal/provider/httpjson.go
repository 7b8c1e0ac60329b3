// Shared HTTP plumbing for the network-backed variants.

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// maxVendorBody caps how much of a vendor response is read; anything a
// training API legitimately returns fits well under this.
const maxVendorBody = 1 << 20

// doJSON performs one JSON round-trip against a vendor endpoint. Non-2xx
// responses and transport failures are wrapped into *Error with the raw
// payload attached; 2xx bodies are decoded into out (when out is non-nil).
func doJSON(ctx context.Context, client *http.Client, providerName, op, method, url string, headers map[string]string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return &Error{Provider: providerName, Op: op, Err: err}
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return &Error{Provider: providerName, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &Error{Provider: providerName, Op: op, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxVendorBody))
	if err != nil {
		return &Error{Provider: providerName, Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Provider: providerName, Op: op, StatusCode: resp.StatusCode, Payload: string(payload)}
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return &Error{Provider: providerName, Op: op, StatusCode: resp.StatusCode, Payload: string(payload), Err: err}
		}
	}
	return nil
}
