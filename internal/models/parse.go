package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// maxNumberScale bounds the integer and fractional digits a cell may carry
// before it is no longer read as a number
const maxNumberScale = 30

// ParseNumber reads s as a decimal. ok is false when s is not a number or
// its magnitude or precision lies beyond maxNumberScale digits, such as
// "1e500000000".
func ParseNumber(s string) (number decimal.Decimal, ok bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	exp := int(d.Exponent())
	if exp < -maxNumberScale || d.NumDigits()+exp > maxNumberScale {
		return decimal.Zero, false
	}
	return d, true
}

// NormalizeCustomerKey canonicalizes a customer identifier. Values that
// read as a number are floored and printed without a decimal suffix, so
// "100234.0" and "100234" agree. Anything else is returned trimmed.
func NormalizeCustomerKey(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	d, ok := ParseNumber(s)
	if !ok {
		return s
	}
	return d.Floor().String()
}

// ParseAmount reads a monetary cell. Thousand separators and surrounding
// spaces are ignored. ok is false for empty or unreadable cells, whose
// amount is zero.
func ParseAmount(s string) (amount decimal.Decimal, ok bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, false
	}
	return ParseNumber(s)
}

// Slash, dash and dot layouts are day-first; the source ledgers are
// exported with Vietnamese locale settings.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02/01/2006 15:04:05",
	"02-01-2006",
	"02.01.2006",
	"02-01-06",
}

// Excel serial numbers outside this range are not dates
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// ParseDate reads a date cell in any of the supported layouts, or as an
// Excel serial day number. ok is false for empty or unreadable cells.
func ParseDate(s string) (date time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), true
		}
	}

	if d, ok := ParseNumber(s); ok {
		serial, _ := d.Float64()
		if serial >= minExcelSerial && serial <= maxExcelSerial {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return Day(t), true
			}
		}
	}

	return time.Time{}, false
}

// ParseDebtGroup reads a non-performing-loan bucket such as "2" or "2.0".
// Anything outside 1 to 5 is absent.
func ParseDebtGroup(s string) DebtGroup {
	d, ok := ParseAmount(s)
	if !ok || !d.Equal(d.Truncate(0)) {
		return DebtGroupAbsent
	}
	g := d.IntPart()
	if g < 1 || g > 5 {
		return DebtGroupAbsent
	}
	return DebtGroup(g)
}

// ParseApprovalCode extracts the approval code from an approval-level cell:
// the text before the first '-', trimmed and left-padded with zeros to two
// characters.
func ParseApprovalCode(s string) string {
	token := strings.TrimSpace(strings.SplitN(s, "-", 2)[0])
	for len(token) < 2 {
		token = "0" + token
	}
	return token
}

// ProvinceFromAddress returns the lower-cased text after the last comma
// of a free-text address
func ProvinceFromAddress(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}
	parts := strings.Split(address, ",")
	return strings.ToLower(strings.TrimSpace(parts[len(parts)-1]))
}
