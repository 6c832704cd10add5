package avatax

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Wire models for the REST v2 transaction API. Field names follow the
// service's JSON contract.

type restAddress struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country,omitempty"`
}

type restAddresses struct {
	ShipFrom *restAddress `json:"shipFrom,omitempty"`
	ShipTo   *restAddress `json:"shipTo,omitempty"`
}

type restLine struct {
	Number      string          `json:"number"`
	Quantity    decimal.Decimal `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
	ItemCode    string          `json:"itemCode,omitempty"`
	TaxCode     string          `json:"taxCode,omitempty"`
	Description string          `json:"description,omitempty"`
	Discounted  bool            `json:"discounted,omitempty"`
}

type restTaxOverride struct {
	Type    string `json:"type"`
	TaxDate string `json:"taxDate"`
	Reason  string `json:"reason"`
}

type restCreateTransaction struct {
	Code                     string           `json:"code"`
	Type                     string           `json:"type"`
	CompanyCode              string           `json:"companyCode"`
	Date                     string           `json:"date"`
	CustomerCode             string           `json:"customerCode"`
	SalespersonCode          string           `json:"salespersonCode,omitempty"`
	BusinessIdentificationNo string           `json:"businessIdentificationNo,omitempty"`
	ExemptionNo              string           `json:"exemptionNo,omitempty"`
	CustomerUsageType        string           `json:"customerUsageType,omitempty"`
	CurrencyCode             string           `json:"currencyCode,omitempty"`
	ReportingLocationCode    string           `json:"reportingLocationCode,omitempty"`
	ReferenceCode            string           `json:"referenceCode,omitempty"`
	Addresses                restAddresses    `json:"addresses"`
	Lines                    []restLine       `json:"lines"`
	TaxOverride              *restTaxOverride `json:"taxOverride,omitempty"`
	Commit                   bool             `json:"commit"`
}

type restTaxDetail struct {
	Rate decimal.Decimal `json:"rate"`
	Tax  decimal.Decimal `json:"tax"`
}

type restTransactionLine struct {
	LineNumber string          `json:"lineNumber"`
	Tax        decimal.Decimal `json:"tax"`
	Details    []restTaxDetail `json:"details"`
}

type restTransaction struct {
	ID       int64                 `json:"id"`
	Code     string                `json:"code"`
	Status   string                `json:"status"`
	TotalTax decimal.Decimal       `json:"totalTax"`
	Lines    []restTransactionLine `json:"lines"`
}

// number parses the wire line number, which the service renders as a string
func (l *restTransactionLine) number() int {
	n, err := strconv.Atoi(l.LineNumber)
	if err != nil {
		return 0
	}
	return n
}

// rate aggregates the detail rates into one percentage
func (l *restTransactionLine) rate() decimal.Decimal {
	total := decimal.Zero
	for _, d := range l.Details {
		total = total.Add(d.Rate)
	}
	return total.Mul(decimal.NewFromInt(100))
}

type restErrorDetail struct {
	Number      int    `json:"number"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

type restError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details []restErrorDetail `json:"details"`
}

type restErrorEnvelope struct {
	Error restError `json:"error"`
}

type restVoidRequest struct {
	Code string `json:"code"`
}

type restCommitRequest struct {
	Commit bool `json:"commit"`
}

type restPingResponse struct {
	Authenticated bool   `json:"authenticated"`
	Version       string `json:"version"`
}
