package storefront

import "github.com/shopspring/decimal"

type District struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	ShippingCost  decimal.Decimal `json:"shippingCost"`
	EstimatedTime string          `json:"estimatedTime"`
}

// StoreInfo describes the pickup location.
type StoreInfo struct {
	Name         string `json:"name"`
	Address      string `json:"address"`
	Reference    string `json:"reference"`
	Phone        string `json:"phone"`
	OpeningHours string `json:"openingHours"`
	MapURL       string `json:"mapUrl"`
}

// PaymentChannel holds the wallet account a customer transfers to.
type PaymentChannel struct {
	Method        string   `json:"method"`
	Label         string   `json:"label"`
	AccountName   string   `json:"accountName"`
	AccountNumber string   `json:"accountNumber"`
	Instructions  []string `json:"instructions"`
}
