package service

import (
	"math"

	"gear_sync_v1_202509/internal/model"
)

// PricingService 平台定价策略
type PricingService interface {
	// CalculatePlatformPrice 基准价 -> 平台挂牌价
	CalculatePlatformPrice(platformName string, basePrice float64) float64
}

// markupPricing 按平台手续费率加价，结果取两位小数
// 各平台抽成不同：Reverb ~5%、eBay ~13%、Shopify 自营不加价
type markupPricing struct {
	markup map[string]float64
}

// NewMarkupPricing 创建加价定价服务；multipliers 为空时使用内置费率
func NewMarkupPricing(multipliers map[string]float64) PricingService {
	if len(multipliers) == 0 {
		multipliers = map[string]float64{
			model.PlatformReverb:  1.05,
			model.PlatformEbay:    1.13,
			model.PlatformShopify: 1.00,
			model.PlatformVR:      1.08,
		}
	}
	return &markupPricing{markup: multipliers}
}

func (p *markupPricing) CalculatePlatformPrice(platformName string, basePrice float64) float64 {
	m, ok := p.markup[platformName]
	if !ok {
		m = 1.0
	}
	return math.Round(basePrice*m*100) / 100
}
