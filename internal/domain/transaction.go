// Package domain defines the core interfaces and types for SikaGuard.
package domain

import (
	"time"
)

// Provider identifies the Mobile Money carrier a message claims to come from.
type Provider string

const (
	ProviderMTN        Provider = "MTN"
	ProviderVodafone   Provider = "Vodafone"
	ProviderAirtelTigo Provider = "AirtelTigo"
	ProviderTelecel    Provider = "Telecel"
	ProviderUnknown    Provider = "Unknown"
)

// TransactionType classifies what a transaction segment describes.
type TransactionType string

const (
	TypeSent           TransactionType = "sent"
	TypeReceived       TransactionType = "received"
	TypeWithdrawal     TransactionType = "withdrawal"
	TypeAirtime        TransactionType = "airtime"
	TypeBundle         TransactionType = "bundle"
	TypeBillPayment    TransactionType = "bill_payment"
	TypeBalanceInquiry TransactionType = "balance_inquiry"
	TypeFailed         TransactionType = "failed"
	TypePromotional    TransactionType = "promotional"
	TypeOther          TransactionType = "other"
)

// Informational reports whether the type describes a service message
// rather than a movement of money. Informational types are never
// scored as financial risk subjects.
func (t TransactionType) Informational() bool {
	switch t {
	case TypeBalanceInquiry, TypeFailed, TypePromotional, TypeOther:
		return true
	}
	return false
}

// UtilitySpend reports whether the type is an inherently low-risk
// utility purchase (airtime top-up, bill payment).
func (t TransactionType) UtilitySpend() bool {
	return t == TypeAirtime || t == TypeBillPayment
}

// ParsedTransaction is the structured result of extracting one SMS
// segment. Optional numeric fields are nil when the message did not
// mention them; an explicit zero (a "-" charge) is a non-nil zero.
type ParsedTransaction struct {
	Provider Provider        `json:"provider"`
	Type     TransactionType `json:"type"`

	Amount *float64 `json:"amount,omitempty"`

	CounterpartName   string `json:"counterpartName,omitempty"`
	CounterpartNumber string `json:"counterpartNumber,omitempty"`

	Balance *float64 `json:"balance,omitempty"`
	Fee     *float64 `json:"fee,omitempty"`
	Tax     *float64 `json:"tax,omitempty"`
	Levy    *float64 `json:"levy,omitempty"`

	Reference string `json:"reference,omitempty"`

	// Date is "2006-01-02" and Time is "15:04:05"; either may be empty.
	Date string `json:"date,omitempty"`
	Time string `json:"time,omitempty"`

	// RawText is the segment the fields were extracted from.
	RawText string `json:"rawText"`

	ParseErrors []string `json:"parseErrors,omitempty"`
}

// When returns the combined date+time of the transaction.
// ok is false unless both parts were extracted.
func (p *ParsedTransaction) When() (time.Time, bool) {
	if p.Date == "" || p.Time == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse("2006-01-02 15:04:05", p.Date+" "+p.Time)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// Hour returns the hour-of-day of the transaction time.
// Works even when the date is absent.
func (p *ParsedTransaction) Hour() (int, bool) {
	if p.Time == "" {
		return 0, false
	}
	ts, err := time.Parse("15:04:05", p.Time)
	if err != nil {
		return 0, false
	}
	return ts.Hour(), true
}

// CounterpartIdentity returns the best available identity of the other
// party: the number when present, otherwise the name.
func (p *ParsedTransaction) CounterpartIdentity() string {
	if p.CounterpartNumber != "" {
		return p.CounterpartNumber
	}
	return p.CounterpartName
}

// Transaction is a parsed transaction promoted to a persisted record.
type Transaction struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	UserID   string `json:"userId"`

	ParsedTransaction

	// ReceivedAt is when the SMS reached the user's device.
	ReceivedAt time.Time `json:"receivedAt"`
	CreatedAt  time.Time `json:"createdAt"`
}

// EffectiveTime is the timestamp velocity and temporal checks anchor on:
// the extracted message time when complete, otherwise the receive time.
func (t *Transaction) EffectiveTime() time.Time {
	if ts, ok := t.When(); ok {
		return ts
	}
	return t.ReceivedAt
}

// AnalyzeRequest is the API request payload for SMS analysis.
type AnalyzeRequest struct {
	UserID     string     `json:"userId"`
	Message    string     `json:"message"`
	Sender     string     `json:"sender,omitempty"`
	ReceivedAt *time.Time `json:"receivedAt,omitempty"`
}
