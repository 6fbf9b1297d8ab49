package platform

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// ==================== Reverb 客户端 ====================

// reverbClient Reverb API v3 封装
// 注意：Reverb 要求 SKU 全局唯一，replacement 上架必须带版本化 SKU
type reverbClient struct {
	baseClient
}

// NewReverbClient 创建 Reverb 客户端
func NewReverbClient(cfg Config) Client {
	return &reverbClient{baseClient: newBaseClient("reverb", cfg)}
}

type reverbListing struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	State struct {
		Slug string `json:"slug"`
	} `json:"state"`
	Description string `json:"description"`
	Price       struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"price"`
	CategoryUUIDs []string `json:"category_uuids"`
	Photos        []struct {
		Links struct {
			Full struct {
				Href string `json:"href"`
			} `json:"full"`
		} `json:"_links"`
	} `json:"photos"`
	Links struct {
		Web struct {
			Href string `json:"href"`
		} `json:"web"`
	} `json:"_links"`
}

func (l *reverbListing) toRemote() RemoteListing {
	price, _ := strconv.ParseFloat(l.Price.Amount, 64)
	remote := RemoteListing{
		ExternalID:  strconv.FormatInt(l.ID, 10),
		Title:       l.Title,
		Description: l.Description,
		RawStatus:   l.State.Slug,
		Price:       price,
		Currency:    l.Price.Currency,
		URL:         l.Links.Web.Href,
	}
	if len(l.CategoryUUIDs) > 0 {
		remote.CategoryID = l.CategoryUUIDs[0]
	}
	for _, p := range l.Photos {
		remote.ImageURLs = append(remote.ImageURLs, p.Links.Full.Href)
	}
	return remote
}

func (c *reverbClient) GetListing(ctx context.Context, externalID string) (*RemoteListing, error) {
	var res reverbListing
	path := fmt.Sprintf("/api/my/listings/%s", externalID)
	if err := c.do(ctx, "GetListing", http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	remote := res.toRemote()
	return &remote, nil
}

func (c *reverbClient) ListListings(ctx context.Context) ([]RemoteListing, error) {
	var remotes []RemoteListing
	page := 1
	for {
		var res struct {
			Listings []reverbListing `json:"listings"`
			Total    int             `json:"total"`
		}
		path := fmt.Sprintf("/api/my/listings?per_page=50&page=%d", page)
		if err := c.do(ctx, "ListListings", http.MethodGet, path, nil, &res); err != nil {
			return nil, err
		}
		for i := range res.Listings {
			remotes = append(remotes, res.Listings[i].toRemote())
		}
		if len(res.Listings) < 50 {
			break
		}
		page++
	}
	return remotes, nil
}

func (c *reverbClient) UpdateListing(ctx context.Context, externalID string, fields map[string]interface{}) error {
	path := fmt.Sprintf("/api/my/listings/%s", externalID)
	return c.do(ctx, "UpdateListing", http.MethodPut, path, fields, nil)
}

func (c *reverbClient) EndListing(ctx context.Context, externalID string) error {
	path := fmt.Sprintf("/api/my/listings/%s/state/end", externalID)
	return c.do(ctx, "EndListing", http.MethodPut, path, map[string]interface{}{"reason": "not_sold"}, nil)
}

func (c *reverbClient) CreateListing(ctx context.Context, draft ListingDraft) (string, error) {
	payload := map[string]interface{}{
		"sku":         draft.SKU,
		"title":       draft.Title,
		"description": draft.Description,
		"price": map[string]interface{}{
			"amount":   strconv.FormatFloat(draft.Price, 'f', 2, 64),
			"currency": draft.Currency,
		},
		"photos":  draft.ImageURLs,
		"publish": true,
	}
	if draft.CategoryID != "" {
		payload["categories"] = []map[string]string{{"uuid": draft.CategoryID}}
	}

	var res struct {
		Listing struct {
			ID int64 `json:"id"`
		} `json:"listing"`
	}
	if err := c.do(ctx, "CreateListing", http.MethodPost, "/api/my/listings", payload, &res); err != nil {
		return "", err
	}
	if res.Listing.ID == 0 {
		return "", &ProtocolError{Platform: c.name, StatusCode: 200, Message: "创建返回中缺少 listing id"}
	}
	return strconv.FormatInt(res.Listing.ID, 10), nil
}
