package platform

import (
	"context"
	"fmt"
	"net/http"
)

// ==================== Vintage & Rare 客户端 ====================

// vrClient Vintage & Rare API 封装
// 接口能力有限：restore-from-sold 通过 update 的 sold 标记实现
type vrClient struct {
	baseClient
}

// NewVRClient 创建 Vintage & Rare 客户端
func NewVRClient(cfg Config) Client {
	return &vrClient{baseClient: newBaseClient("vintageandrare", cfg)}
}

type vrItem struct {
	ItemID      string   `json:"item_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency"`
	CategoryID  string   `json:"category_id"`
	ItemURL     string   `json:"item_url"`
	Images      []string `json:"images"`
}

func (i *vrItem) toRemote() RemoteListing {
	return RemoteListing{
		ExternalID:  i.ItemID,
		Title:       i.Name,
		Description: i.Description,
		RawStatus:   i.Status,
		Price:       i.Price,
		Currency:    i.Currency,
		CategoryID:  i.CategoryID,
		URL:         i.ItemURL,
		ImageURLs:   i.Images,
	}
}

func (c *vrClient) GetListing(ctx context.Context, externalID string) (*RemoteListing, error) {
	var res vrItem
	path := fmt.Sprintf("/api/items/%s", externalID)
	if err := c.do(ctx, "GetListing", http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	if res.ItemID == "" {
		return nil, c.notFound(externalID)
	}
	remote := res.toRemote()
	return &remote, nil
}

func (c *vrClient) ListListings(ctx context.Context) ([]RemoteListing, error) {
	var res struct {
		Items []vrItem `json:"items"`
	}
	if err := c.do(ctx, "ListListings", http.MethodGet, "/api/items", nil, &res); err != nil {
		return nil, err
	}
	remotes := make([]RemoteListing, 0, len(res.Items))
	for i := range res.Items {
		remotes = append(remotes, res.Items[i].toRemote())
	}
	return remotes, nil
}

func (c *vrClient) UpdateListing(ctx context.Context, externalID string, fields map[string]interface{}) error {
	path := fmt.Sprintf("/api/items/%s", externalID)
	return c.do(ctx, "UpdateListing", http.MethodPut, path, fields, nil)
}

func (c *vrClient) EndListing(ctx context.Context, externalID string) error {
	path := fmt.Sprintf("/api/items/%s", externalID)
	return c.do(ctx, "EndListing", http.MethodDelete, path, nil, nil)
}

func (c *vrClient) CreateListing(ctx context.Context, draft ListingDraft) (string, error) {
	payload := map[string]interface{}{
		"name":        draft.Title,
		"description": draft.Description,
		"price":       draft.Price,
		"currency":    draft.Currency,
		"category_id": draft.CategoryID,
		"images":      draft.ImageURLs,
		"sku":         draft.SKU,
	}

	var res struct {
		ItemID string `json:"item_id"`
	}
	if err := c.do(ctx, "CreateListing", http.MethodPost, "/api/items", payload, &res); err != nil {
		return "", err
	}
	if res.ItemID == "" {
		return "", &ProtocolError{Platform: c.name, StatusCode: 200, Message: "创建返回中缺少 item id"}
	}
	return res.ItemID, nil
}
