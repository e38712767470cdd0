package models

import "time"

// Requests and responses for the HTTP endpoints.

type ScanRequest struct {
	Ticker        string `json:"ticker" validate:"required,ticker"`
	RiskProfile   string `json:"riskProfile" validate:"required"`
	MinDTE        int    `json:"minDte" default:"30" validate:"gte=1,lte=365"`
	MaxDTE        int    `json:"maxDte" default:"45" validate:"gte=1,lte=365"`
	MaxStrategies int    `json:"maxStrategies" default:"10" validate:"gte=1,lte=20"`
}

type QuoteRequest struct {
	Ticker string `param:"ticker" validate:"required,ticker"`
}

type StrategyRequest struct {
	ID string `param:"id" validate:"required,max=64"`
}

type ExportRequest struct {
	Strategies []Strategy `json:"strategies" validate:"required,max=100"`
}

type ScanResponse struct {
	Success        bool       `json:"success"`
	ScanID         string     `json:"scanId"`
	Ticker         string     `json:"ticker"`
	RiskProfile    string     `json:"riskProfile"`
	CurrentPrice   float64    `json:"currentPrice"`
	PriceSource    string     `json:"priceSource"`
	PriceEstimated bool       `json:"priceEstimated"`
	MinDTE         int        `json:"minDte"`
	MaxDTE         int        `json:"maxDte"`
	ExpiryFrom     string     `json:"expiryFrom"`
	ExpiryTo       string     `json:"expiryTo"`
	Strategies     []Strategy `json:"strategies"`
	Timestamp      time.Time  `json:"timestamp"`
}

type ExportResponse struct {
	Strategies  []Strategy `json:"strategies"`
	GeneratedAt time.Time  `json:"generatedAt"`
	TotalCount  int        `json:"totalCount"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// NewScanResponse renders a screening result for the wire.
func NewScanResponse(res *ScanResult) ScanResponse {
	strategies := res.Strategies
	if strategies == nil {
		strategies = []Strategy{}
	}
	return ScanResponse{
		Success:        true,
		ScanID:         res.ScanID,
		Ticker:         res.Ticker,
		RiskProfile:    string(res.RiskProfile),
		CurrentPrice:   res.CurrentPrice,
		PriceSource:    res.Quote.Source,
		PriceEstimated: res.Quote.Estimated,
		MinDTE:         res.MinDTE,
		MaxDTE:         res.MaxDTE,
		ExpiryFrom:     res.ExpiryFrom.Format(time.DateOnly),
		ExpiryTo:       res.ExpiryTo.Format(time.DateOnly),
		Strategies:     strategies,
		Timestamp:      res.GeneratedAt,
	}
}
