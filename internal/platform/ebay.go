package platform

import (
	"context"
	"fmt"
	"net/http"
)

// ==================== eBay 客户端 ====================

// ebayClient eBay Trading/Sell API 封装
// 唯一实现原生 Relist 动词的平台：relist 会签发全新的 ItemID
type ebayClient struct {
	baseClient
}

// NewEbayClient 创建 eBay 客户端
func NewEbayClient(cfg Config) Client {
	return &ebayClient{baseClient: newBaseClient("ebay", cfg)}
}

var _ Relister = (*ebayClient)(nil)

type ebayItem struct {
	ItemID        string   `json:"item_id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	ListingStatus string   `json:"listing_status"`
	CategoryID    string   `json:"category_id"`
	ViewItemURL   string   `json:"view_item_url"`
	PictureURLs   []string `json:"picture_urls"`
	CurrentPrice  struct {
		Value    float64 `json:"value"`
		Currency string  `json:"currency"`
	} `json:"current_price"`
}

func (i *ebayItem) toRemote() RemoteListing {
	return RemoteListing{
		ExternalID:  i.ItemID,
		Title:       i.Title,
		Description: i.Description,
		RawStatus:   i.ListingStatus,
		Price:       i.CurrentPrice.Value,
		Currency:    i.CurrentPrice.Currency,
		CategoryID:  i.CategoryID,
		URL:         i.ViewItemURL,
		ImageURLs:   i.PictureURLs,
	}
}

func (c *ebayClient) GetListing(ctx context.Context, externalID string) (*RemoteListing, error) {
	var res struct {
		Item ebayItem `json:"item"`
	}
	path := fmt.Sprintf("/ws/api/item/%s", externalID)
	if err := c.do(ctx, "GetListing", http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	if res.Item.ItemID == "" {
		return nil, c.notFound(externalID)
	}
	remote := res.Item.toRemote()
	return &remote, nil
}

func (c *ebayClient) ListListings(ctx context.Context) ([]RemoteListing, error) {
	var remotes []RemoteListing
	page := 1
	for {
		var res struct {
			Items      []ebayItem `json:"items"`
			HasMore    bool       `json:"has_more"`
			PageNumber int        `json:"page_number"`
		}
		path := fmt.Sprintf("/ws/api/seller/items?entries_per_page=100&page_number=%d", page)
		if err := c.do(ctx, "ListListings", http.MethodGet, path, nil, &res); err != nil {
			return nil, err
		}
		for i := range res.Items {
			remotes = append(remotes, res.Items[i].toRemote())
		}
		if !res.HasMore {
			break
		}
		page++
	}
	return remotes, nil
}

func (c *ebayClient) UpdateListing(ctx context.Context, externalID string, fields map[string]interface{}) error {
	path := fmt.Sprintf("/ws/api/item/%s", externalID)
	return c.do(ctx, "UpdateListing", http.MethodPut, path, fields, nil)
}

func (c *ebayClient) EndListing(ctx context.Context, externalID string) error {
	path := fmt.Sprintf("/ws/api/item/%s/end", externalID)
	return c.do(ctx, "EndListing", http.MethodPost, path,
		map[string]interface{}{"ending_reason": "NotAvailable"}, nil)
}

func (c *ebayClient) CreateListing(ctx context.Context, draft ListingDraft) (string, error) {
	payload := map[string]interface{}{
		"sku":          draft.SKU,
		"title":        draft.Title,
		"description":  draft.Description,
		"start_price":  draft.Price,
		"currency":     draft.Currency,
		"category_id":  draft.CategoryID,
		"listing_type": draft.ListingType,
		"picture_urls": draft.ImageURLs,
	}

	var res struct {
		ItemID string `json:"item_id"`
	}
	if err := c.do(ctx, "CreateListing", http.MethodPost, "/ws/api/item", payload, &res); err != nil {
		return "", err
	}
	if res.ItemID == "" {
		return "", &ProtocolError{Platform: c.name, StatusCode: 200, Message: "创建返回中缺少 item id"}
	}
	return res.ItemID, nil
}

// Relist 调用 eBay 原生 relist 动词，平台会签发全新 ItemID
// 本地 detail 行的孤儿化与替换由生命周期层负责，这里只做远程调用
func (c *ebayClient) Relist(ctx context.Context, externalID string) (string, error) {
	var res struct {
		ItemID string `json:"item_id"`
	}
	path := fmt.Sprintf("/ws/api/item/%s/relist", externalID)
	if err := c.do(ctx, "Relist", http.MethodPost, path, nil, &res); err != nil {
		return "", err
	}
	if res.ItemID == "" {
		return "", &ProtocolError{Platform: c.name, StatusCode: 200, Message: "relist 返回中缺少新 item id"}
	}
	return res.ItemID, nil
}
