package client

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/snow/internal/http"
	"github.com/fivetwenty-io/snow/pkg/snow"
)

// LinksClient implements snow.LinksClient.
type LinksClient struct {
	httpClient *http.Client
}

// NewLinksClient creates a new links client.
func NewLinksClient(httpClient *http.Client) *LinksClient {
	return &LinksClient{
		httpClient: httpClient,
	}
}

// Resolve implements snow.LinksClient.Resolve. The host part of link is
// ignored; requests always go to the configured instance.
func (c *LinksClient) Resolve(ctx context.Context, link string, fields []string) (snow.Record, error) {
	path, rawQuery, err := splitAPILink(link)
	if err != nil {
		return nil, err
	}

	if encoded := snow.EncodeFields(fields); encoded != "" {
		if rawQuery != "" {
			rawQuery += "&"
		}

		rawQuery += encoded
	}

	resp, err := c.httpClient.GetRaw(ctx, path, rawQuery)
	if err != nil {
		return nil, fmt.Errorf("resolving link: %w", err)
	}

	record, err := decodeSingle[snow.Record](resp.Body, "linked")
	if err != nil {
		return nil, err
	}

	return *record, nil
}
