package platform

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// ==================== Shopify 客户端 ====================

// shopifyClient Shopify Admin REST API 封装
// 刻意排除在 stale refresh 之外：商品 URL 要保持稳定以利 SEO
type shopifyClient struct {
	baseClient
}

// NewShopifyClient 创建 Shopify 客户端
func NewShopifyClient(cfg Config) Client {
	return &shopifyClient{baseClient: newBaseClient("shopify", cfg)}
}

type shopifyProduct struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	BodyHTML string `json:"body_html"`
	Status   string `json:"status"`
	Handle   string `json:"handle"`
	Images   []struct {
		Src string `json:"src"`
	} `json:"images"`
	Variants []struct {
		Price string `json:"price"`
		SKU   string `json:"sku"`
	} `json:"variants"`
}

func (p *shopifyProduct) toRemote() RemoteListing {
	remote := RemoteListing{
		ExternalID:  strconv.FormatInt(p.ID, 10),
		Title:       p.Title,
		Description: p.BodyHTML,
		RawStatus:   p.Status,
		URL:         "/products/" + p.Handle,
	}
	if len(p.Variants) > 0 {
		remote.Price, _ = strconv.ParseFloat(p.Variants[0].Price, 64)
	}
	for _, img := range p.Images {
		remote.ImageURLs = append(remote.ImageURLs, img.Src)
	}
	return remote
}

func (c *shopifyClient) GetListing(ctx context.Context, externalID string) (*RemoteListing, error) {
	var res struct {
		Product shopifyProduct `json:"product"`
	}
	path := fmt.Sprintf("/admin/api/2024-01/products/%s.json", externalID)
	if err := c.do(ctx, "GetListing", http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	if res.Product.ID == 0 {
		return nil, c.notFound(externalID)
	}
	remote := res.Product.toRemote()
	return &remote, nil
}

func (c *shopifyClient) ListListings(ctx context.Context) ([]RemoteListing, error) {
	var res struct {
		Products []shopifyProduct `json:"products"`
	}
	if err := c.do(ctx, "ListListings", http.MethodGet, "/admin/api/2024-01/products.json?limit=250", nil, &res); err != nil {
		return nil, err
	}
	remotes := make([]RemoteListing, 0, len(res.Products))
	for i := range res.Products {
		remotes = append(remotes, res.Products[i].toRemote())
	}
	return remotes, nil
}

func (c *shopifyClient) UpdateListing(ctx context.Context, externalID string, fields map[string]interface{}) error {
	path := fmt.Sprintf("/admin/api/2024-01/products/%s.json", externalID)
	return c.do(ctx, "UpdateListing", http.MethodPut, path,
		map[string]interface{}{"product": fields}, nil)
}

func (c *shopifyClient) EndListing(ctx context.Context, externalID string) error {
	// Shopify 没有 end 概念，置为 archived
	return c.UpdateListing(ctx, externalID, map[string]interface{}{"status": "archived"})
}

func (c *shopifyClient) CreateListing(ctx context.Context, draft ListingDraft) (string, error) {
	images := make([]map[string]string, 0, len(draft.ImageURLs))
	for _, u := range draft.ImageURLs {
		images = append(images, map[string]string{"src": u})
	}
	payload := map[string]interface{}{
		"product": map[string]interface{}{
			"title":     draft.Title,
			"body_html": draft.Description,
			"status":    "active",
			"images":    images,
			"variants": []map[string]interface{}{
				{"price": strconv.FormatFloat(draft.Price, 'f', 2, 64), "sku": draft.SKU},
			},
		},
	}

	var res struct {
		Product struct {
			ID int64 `json:"id"`
		} `json:"product"`
	}
	if err := c.do(ctx, "CreateListing", http.MethodPost, "/admin/api/2024-01/products.json", payload, &res); err != nil {
		return "", err
	}
	if res.Product.ID == 0 {
		return "", &ProtocolError{Platform: c.name, StatusCode: 200, Message: "创建返回中缺少 product id"}
	}
	return strconv.FormatInt(res.Product.ID, 10), nil
}
