// Package fetch implements the HTTP fragment fetcher: a single GET against
// the strip endpoint that extracts the authoritative sequence number from a
// response header.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ece252-project/stripassemble/internal/codec"
)

// FragmentHeader is the response header carrying the authoritative sequence
// number for a fetched strip.
const FragmentHeader = "X-Ece252-Fragment"

// Fragment is one downloaded strip: its authoritative sequence number and
// raw (still PNG-encoded) body.
type Fragment struct {
	Sequence int
	Body     []byte
}

// Client fetches strip fragments from a single endpoint. It is stateless and
// safe for concurrent use by multiple goroutines.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
}

// NewClient builds a fetcher against endpoint using http.DefaultClient.
func NewClient(endpoint string) *Client {
	return &Client{Endpoint: endpoint, HTTPClient: http.DefaultClient}
}

// Fetch issues GET {endpoint}?img={imageNum}&part={partNum} and returns the
// downloaded fragment. Any transport error, non-2xx response, or missing /
// unparseable fragment header is reported as a Network error.
func (c *Client) Fetch(ctx context.Context, imageNum, partNum int) (Fragment, error) {
	url := fmt.Sprintf("%s?img=%d&part=%d", c.Endpoint, imageNum, partNum)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Fragment{}, codec.NewError(codec.Network, "building request: %v", err)
	}
	req.Header.Set("User-Agent", "stripassemble/1.0")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return Fragment{}, codec.NewError(codec.Network, "GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Fragment{}, codec.NewError(codec.Network, "GET %s: status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Fragment{}, codec.NewError(codec.Network, "reading body: %v", err)
	}

	seq, err := sequenceFromHeader(resp.Header.Get(FragmentHeader))
	if err != nil {
		return Fragment{}, codec.NewError(codec.Network, "GET %s: %v", url, err)
	}

	return Fragment{Sequence: seq, Body: body}, nil
}

func sequenceFromHeader(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return -1, fmt.Errorf("missing %s header", FragmentHeader)
	}
	seq, err := strconv.Atoi(v)
	if err != nil {
		return -1, fmt.Errorf("malformed %s header %q: %v", FragmentHeader, v, err)
	}
	return seq, nil
}
