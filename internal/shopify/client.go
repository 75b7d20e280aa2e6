// Package shopify is a thin Shopify Admin GraphQL client implementing the
// pipeline's catalog-lookup and order-creation capabilities.
//
// The pipeline only sees the importer interfaces; everything
// Shopify-specific (GraphQL shapes, GIDs, the "- Default Title" quirk
// handled upstream) stays in this package.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/orderdesk/orderdesk/internal/config"
	"github.com/orderdesk/orderdesk/internal/importer"
)

// Client talks to one shop's Admin GraphQL API.
type Client struct {
	httpClient   *http.Client
	endpoint     string
	accessToken  string
	maxLocations int
}

// Interface guards: the client is wired into the pipeline through these.
var (
	_ importer.VariantFinder = (*Client)(nil)
	_ importer.OrderCreator  = (*Client)(nil)
)

// NewClient creates a client for the configured shop.
func NewClient(cfg *config.ShopifyConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		endpoint:     fmt.Sprintf("https://%s/admin/api/%s/graphql.json", cfg.ShopDomain, cfg.APIVersion),
		accessToken:  cfg.AccessToken,
		maxLocations: cfg.MaxInventoryLocations,
	}
}

// NewClientWithEndpoint creates a client against an explicit endpoint.
// Used by tests to point at a local server.
func NewClientWithEndpoint(endpoint, accessToken string, maxLocations int) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		endpoint:     endpoint,
		accessToken:  accessToken,
		maxLocations: maxLocations,
	}
}

const variantBySKUQuery = `query variantBySku($query: String!, $locations: Int!) {
  productVariants(first: 1, query: $query) {
    edges {
      node {
        id
        sku
        displayName
        product { title }
        inventoryItem {
          inventoryLevels(first: $locations) {
            edges {
              node {
                location { id }
                quantities(names: ["available"]) {
                  name
                  quantity
                }
              }
            }
          }
        }
      }
    }
  }
}`

// variantBySKUResponse mirrors the productVariants query shape.
type variantBySKUResponse struct {
	ProductVariants struct {
		Edges []struct {
			Node struct {
				ID          string `json:"id"`
				SKU         string `json:"sku"`
				DisplayName string `json:"displayName"`
				Product     struct {
					Title string `json:"title"`
				} `json:"product"`
				InventoryItem struct {
					InventoryLevels struct {
						Edges []struct {
							Node struct {
								Location struct {
									ID string `json:"id"`
								} `json:"location"`
								Quantities []struct {
									Name     string `json:"name"`
									Quantity int    `json:"quantity"`
								} `json:"quantities"`
							} `json:"node"`
						} `json:"edges"`
					} `json:"inventoryLevels"`
				} `json:"inventoryItem"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"productVariants"`
}

// FindVariantBySKU looks up a sellable variant by exact SKU.
// Returns (nil, nil) when no catalog entry matches.
func (c *Client) FindVariantBySKU(ctx context.Context, sku string) (*importer.Variant, error) {
	var resp variantBySKUResponse
	vars := map[string]any{
		"query":     fmt.Sprintf("sku:%q", sku),
		"locations": c.maxLocations,
	}
	if err := c.do(ctx, variantBySKUQuery, vars, &resp); err != nil {
		return nil, err
	}

	if len(resp.ProductVariants.Edges) == 0 {
		return nil, nil
	}

	node := resp.ProductVariants.Edges[0].Node

	// The search query matches loosely; only an exact SKU counts.
	if !strings.EqualFold(strings.TrimSpace(node.SKU), sku) {
		return nil, nil
	}

	variant := &importer.Variant{
		ID:           node.ID,
		DisplayName:  node.DisplayName,
		ProductTitle: node.Product.Title,
	}
	for _, edge := range node.InventoryItem.InventoryLevels.Edges {
		available := 0
		for _, q := range edge.Node.Quantities {
			if q.Name == "available" {
				available = q.Quantity
			}
		}
		variant.Levels = append(variant.Levels, importer.InventoryLevel{
			LocationID: edge.Node.Location.ID,
			Available:  available,
		})
	}
	return variant, nil
}

const draftOrderCreateMutation = `mutation draftOrderCreate($input: DraftOrderInput!) {
  draftOrderCreate(input: $input) {
    draftOrder {
      id
      legacyResourceId
      name
    }
    userErrors {
      field
      message
    }
  }
}`

// draftOrderCreateResponse mirrors the draftOrderCreate mutation shape.
type draftOrderCreateResponse struct {
	DraftOrderCreate struct {
		DraftOrder *struct {
			ID               string `json:"id"`
			LegacyResourceID string `json:"legacyResourceId"`
			Name             string `json:"name"`
		} `json:"draftOrder"`
		UserErrors []struct {
			Field   []string `json:"field"`
			Message string   `json:"message"`
		} `json:"userErrors"`
	} `json:"draftOrderCreate"`
}

// CreateOrder submits a consolidated draft order for the customer.
func (c *Client) CreateOrder(ctx context.Context, req importer.OrderRequest) (*importer.CreatedOrder, error) {
	lineItems := make([]map[string]any, len(req.LineItems))
	for i, item := range req.LineItems {
		lineItems[i] = map[string]any{
			"variantId": item.VariantID,
			"quantity":  item.Quantity,
		}
	}

	input := map[string]any{
		"lineItems": lineItems,
		"note":      req.Note,
		"purchasingEntity": map[string]any{
			"customerId": customerGID(req.CustomerID),
		},
	}

	var resp draftOrderCreateResponse
	if err := c.do(ctx, draftOrderCreateMutation, map[string]any{"input": input}, &resp); err != nil {
		return nil, err
	}

	if len(resp.DraftOrderCreate.UserErrors) > 0 {
		msgs := make([]string, len(resp.DraftOrderCreate.UserErrors))
		for i, ue := range resp.DraftOrderCreate.UserErrors {
			msgs[i] = ue.Message
		}
		return nil, fmt.Errorf("draft order rejected: %s", strings.Join(msgs, "; "))
	}

	order := resp.DraftOrderCreate.DraftOrder
	if order == nil || order.ID == "" {
		return nil, fmt.Errorf("draft order response missing order descriptor")
	}

	return &importer.CreatedOrder{
		ID:        order.ID,
		DisplayID: order.LegacyResourceID,
		Label:     order.Name,
	}, nil
}

// customerGID converts a numeric customer identity to a Shopify GID.
// Values that already look like GIDs pass through unchanged.
func customerGID(id string) string {
	if strings.HasPrefix(id, "gid://") {
		return id
	}
	return "gid://shopify/Customer/" + id
}

// graphqlRequest is the Admin API request envelope.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the Admin API response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// do executes one GraphQL call and decodes the data payload into out.
// Non-2xx responses become errors carrying the response body for diagnostics.
func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Shopify-Access-Token", c.accessToken)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("admin api call: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return fmt.Errorf("admin api status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var envelope graphqlResponse
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]string, len(envelope.Errors))
		for i, e := range envelope.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("graphql errors: %s", strings.Join(msgs, "; "))
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
