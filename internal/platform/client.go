package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ==================== 对外契约 ====================

// RemoteListing 平台侧上架快照（只取对账需要的字段）
type RemoteListing struct {
	ExternalID  string   `json:"external_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	RawStatus   string   `json:"raw_status"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency"`
	CategoryID  string   `json:"category_id"`
	URL         string   `json:"url"`
	ImageURLs   []string `json:"image_urls"`
}

// ListingDraft 创建替换上架时的载荷
type ListingDraft struct {
	SKU         string   `json:"sku"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Currency    string   `json:"currency"`
	CategoryID  string   `json:"category_id"`
	ListingType string   `json:"listing_type"`
	ImageURLs   []string `json:"image_urls"`
}

// Client 各平台 API 客户端的统一契约
// 实现必须把底层错误折算为 errors.go 的三类之一
type Client interface {
	Name() string

	GetListing(ctx context.Context, externalID string) (*RemoteListing, error)
	ListListings(ctx context.Context) ([]RemoteListing, error)
	UpdateListing(ctx context.Context, externalID string, fields map[string]interface{}) error
	EndListing(ctx context.Context, externalID string) error
	CreateListing(ctx context.Context, draft ListingDraft) (string, error)
}

// Relister 原生 relist 动词（仅 eBay）：返回全新 external_id
type Relister interface {
	Relist(ctx context.Context, externalID string) (string, error)
}

// ==================== 基础 HTTP 客户端 ====================

// Config 单个平台客户端的连接配置
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// baseClient 四个平台实现共用的 resty 封装
type baseClient struct {
	name string
	http *resty.Client
}

func newBaseClient(name string, cfg Config) baseClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.Token != "" {
		client.SetAuthToken(cfg.Token)
	}

	return baseClient{name: name, http: client}
}

func (c *baseClient) Name() string { return c.name }

// do 执行请求并完成错误折算
// result 为 nil 时只校验状态码
func (c *baseClient) do(ctx context.Context, op, method, path string, body, result interface{}) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		// resty 只在传输层失败时返回 err，HTTP 错误码走下面的分支
		return &TransportError{Platform: c.name, Op: op, Err: err}
	}

	code := resp.StatusCode()
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == 401 || code == 403:
		return &AuthError{Platform: c.name, Message: resp.String()}
	default:
		return &ProtocolError{Platform: c.name, StatusCode: code, Message: resp.String()}
	}
}

func (c *baseClient) notFound(externalID string) error {
	return &ProtocolError{
		Platform:   c.name,
		StatusCode: 404,
		Message:    fmt.Sprintf("listing %s not found", externalID),
	}
}
