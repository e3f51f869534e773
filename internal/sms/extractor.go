package sms

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sikaguard/sikaguard/internal/domain"
)

// Field extraction works as an ordered list of independent strategies
// per field, tried in priority order. Each carrier phrases its
// notifications differently; keeping the patterns separate keeps each
// quirk testable in isolation.

var providerNames = []struct {
	marker   string
	provider domain.Provider
}{
	{"MTN", domain.ProviderMTN},
	{"TELECEL", domain.ProviderTelecel},
	{"VODAFONE", domain.ProviderVodafone},
	{"AIRTELTIGO", domain.ProviderAirtelTigo},
}

// Type rules are ordered; the first matching substring governs.
var typeRules = []struct {
	markers []string
	txType  domain.TransactionType
}{
	{[]string{"RECEIVED", "CREDITED"}, domain.TypeReceived},
	{[]string{"CASH OUT", "CASH-OUT", "WITHDRAWAL"}, domain.TypeWithdrawal},
	{[]string{"AIRTIME"}, domain.TypeAirtime},
	{[]string{"BUNDLE"}, domain.TypeBundle},
	{[]string{"BILL", "ECG", "GHANA WATER"}, domain.TypeBillPayment},
	// "TO " keeps its trailing space so "TOP-UP" and similar words
	// containing TO do not read as a transfer.
	{[]string{"PAYMENT", "PAID TO", "PAID", "TO "}, domain.TypeSent},
	{[]string{"FAILED"}, domain.TypeFailed},
	{[]string{"BALANCE"}, domain.TypeBalanceInquiry},
	{[]string{"PROMO"}, domain.TypePromotional},
}

var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)GHS\s*(\d[\d.]*)`),
	regexp.MustCompile(`₵\s*(\d[\d.]*)`),
	regexp.MustCompile(`(?i)GH₵\s*(\d[\d.]*)`),
	regexp.MustCompile(`(?i)of\s+(?:GHS|₵)?\s*(\d[\d.]*)`),
}

var (
	counterpartFull = regexp.MustCompile(`(?i)to\s+(\d{6,})\s*-\s*([A-Za-z][A-Za-z &\-]+)`)
	counterpartName = regexp.MustCompile(`(?i)to\s+([A-Za-z][A-Za-z &\-]{2,})`)
	counterpartPaid = regexp.MustCompile(`(?i)paid\s+to\s+([A-Za-z][A-Za-z &\-]{2,})`)
)

var balancePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)balance\s+is\s+(?:GHS|₵)\s*(\d[\d.]*)`),
	regexp.MustCompile(`(?i)(?:your\s+)?new\s+balance:?\s*(?:GHS|₵)\s*(\d[\d.]*)`),
	regexp.MustCompile(`(?i)current\s+balance:?\s*(?:GHS|₵)\s*(\d[\d.]*)`),
}

// Charge patterns capture either a number or a literal "-", which
// carriers use for an explicitly-zero charge.
var (
	feePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)fee\s+charged:?\s*(?:GHS|₵)?\s*(-|\d[\d.]*)`),
		regexp.MustCompile(`(?i)\bfee:?\s*(?:GHS|₵)?\s*(-|\d[\d.]*)`),
	}
	taxPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\btax(?:es)?\s+charged:?\s*(?:GHS|₵)?\s*(-|\d[\d.]*)`),
		regexp.MustCompile(`(?i)\btax:?\s*(?:GHS|₵)?\s*(-|\d[\d.]*)`),
	}
	levyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)e-?levy\s+charged:?\s*(?:GHS|₵)?\s*(-|\d[\d.]*)`),
		regexp.MustCompile(`(?i)e-?levy:?\s*(?:GHS|₵)?\s*(-|\d[\d.]*)`),
	}
)

var (
	refFinancialID = regexp.MustCompile(`(?i)financial\s+transaction\s+id:?\s*(\d+)`)
	refTxID        = regexp.MustCompile(`(?i)transaction\s+id:?\s*(\d+)`)
	refLabeled     = regexp.MustCompile(`(?i)reference:?\s*([A-Za-z0-9\-]+)`)
	refPrefix      = regexp.MustCompile(`^(\d{13})`)
)

var timestampPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)at\s+(\d{4}-\d{2}-\d{2})\s+(\d{2}:\d{2}:\d{2})`),
	regexp.MustCompile(`(?i)on\s+(\d{4}-\d{2}-\d{2})\s+at\s+(\d{2}:\d{2}:\d{2})`),
	regexp.MustCompile(`(?i)at\s+(\d{2}:\d{2}:\d{2})`),
}

// Extract parses one segment into a structured transaction. The second
// return value is false when the segment yields neither a provider nor
// an amount and must not be promoted to a transaction.
func Extract(seg Segment) (*domain.ParsedTransaction, bool) {
	text := seg.Text
	upper := strings.ToUpper(text)

	tx := &domain.ParsedTransaction{
		Provider: extractProvider(upper),
		Type:     extractType(upper),
		RawText:  text,
	}

	tx.Amount = extractAmount(text)
	if tx.Amount == nil {
		tx.ParseErrors = append(tx.ParseErrors, "amount not found")
	}

	tx.CounterpartNumber, tx.CounterpartName = extractCounterpart(text)
	tx.Balance = firstDecimal(text, balancePatterns)
	tx.Fee = extractCharge(text, feePatterns)
	tx.Tax = extractCharge(text, taxPatterns)
	tx.Levy = extractCharge(text, levyPatterns)
	tx.Reference = extractReference(text)
	tx.Date, tx.Time = extractTimestamp(text)

	if tx.Provider == domain.ProviderUnknown && tx.Amount == nil {
		return nil, false
	}
	return tx, true
}

func extractProvider(upper string) domain.Provider {
	for _, p := range providerNames {
		if strings.Contains(upper, p.marker) {
			return p.provider
		}
	}
	return domain.ProviderUnknown
}

func extractType(upper string) domain.TransactionType {
	for _, rule := range typeRules {
		for _, m := range rule.markers {
			if strings.Contains(upper, m) {
				return rule.txType
			}
		}
	}
	return domain.TypeOther
}

func extractAmount(text string) *float64 {
	for _, p := range amountPatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimRight(m[1], "."), 64)
		if err != nil || v <= 0 {
			continue
		}
		return &v
	}
	return nil
}

func extractCounterpart(text string) (number, name string) {
	if m := counterpartFull.FindStringSubmatch(text); m != nil {
		return m[1], cleanName(m[2])
	}
	if m := counterpartName.FindStringSubmatch(text); m != nil {
		if n := cleanName(m[1]); len(n) > 2 {
			return "", n
		}
	}
	if m := counterpartPaid.FindStringSubmatch(text); m != nil {
		if n := cleanName(m[1]); len(n) > 2 {
			return "", n
		}
	}
	return "", ""
}

// cleanName strips connective tails the charset-based capture drags in
// ("Kwame Shop on" from "to Kwame Shop on 2024-02-14").
func cleanName(name string) string {
	name = strings.TrimSpace(name)
	for {
		lower := strings.ToLower(name)
		trimmed := false
		for _, tail := range []string{" on", " at", " via", " ref"} {
			if strings.HasSuffix(lower, tail) {
				name = strings.TrimSpace(name[:len(name)-len(tail)])
				trimmed = true
				break
			}
		}
		if !trimmed {
			return name
		}
	}
}

func firstDecimal(text string, patterns []*regexp.Regexp) *float64 {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimRight(m[1], "."), 64)
		if err != nil || v < 0 {
			continue
		}
		return &v
	}
	return nil
}

// extractCharge returns nil when the charge is not mentioned and a
// non-nil zero when the carrier printed "-" for it.
func extractCharge(text string, patterns []*regexp.Regexp) *float64 {
	for _, p := range patterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if m[1] == "-" {
			zero := 0.0
			return &zero
		}
		v, err := strconv.ParseFloat(strings.TrimRight(m[1], "."), 64)
		if err != nil || v < 0 {
			continue
		}
		return &v
	}
	return nil
}

func extractReference(text string) string {
	if m := refFinancialID.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := refTxID.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := refLabeled.FindStringSubmatch(text); m != nil && m[1] != "-" {
		return m[1]
	}
	if m := refPrefix.FindStringSubmatch(strings.TrimSpace(text)); m != nil {
		return m[1]
	}
	return ""
}

func extractTimestamp(text string) (date, clock string) {
	for i, p := range timestampPatterns {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if i == 2 {
			return "", m[1]
		}
		return m[1], m[2]
	}
	return "", ""
}
