package orders

import (
	"github.com/shopspring/decimal"
)

// ResultCodeSuccess marks a completed order init.
const ResultCodeSuccess = "SUCCESS"

// InitOrderInput identifies what is being bought, by whom and where.
type InitOrderInput struct {
	ServiceID   string
	ProductID   string
	UserID      string
	CountryCode string
}

// InitOrderResult returns the snapshot amounts next to their display strings.
type InitOrderResult struct {
	ResultCode                string          `json:"resultCode"`
	OrderID                   string          `json:"orderId"`
	ProductPrice              decimal.Decimal `json:"productPrice"`
	DisplayProductPrice       string          `json:"displayProductPrice"`
	DiscountAmount            decimal.Decimal `json:"discountAmount"`
	TaxAmount                 decimal.Decimal `json:"taxAmount"`
	DisplayTaxAmount          string          `json:"displayTaxAmount"`
	TotalPaymentAmount        decimal.Decimal `json:"totalPaymentAmount"`
	DisplayTotalPaymentAmount string          `json:"displayTotalPaymentAmount"`
	IsFreeTrial               bool            `json:"isFreeTrial"`
	CurrencyCode              string          `json:"currencyCode"`
}
