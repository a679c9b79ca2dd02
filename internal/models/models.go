package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

var fold = cases.Fold()

// Fixed labels the pipeline writes into its outputs
const (
	// LabelNoCollateral is the collateral category of rows with an empty collateral code
	LabelNoCollateral = "no collateral"
	// LabelBlankPurpose is the purpose group of rows with an empty or unmapped purpose code
	LabelBlankPurpose = "(blank)"
	// MarkerNeedsMapping flags a non-empty code that has no entry in its code table
	MarkerNeedsMapping = "NEW"
	// LabelUnmapped is the pivot column collecting rows whose category is unset
	LabelUnmapped = "(unmapped)"
	// FlagMark is the value of a raised flag cell; a lowered flag is ""
	FlagMark = "x"
)

// ProductType tags a collateral ledger row with the kind of exposure
type ProductType string

const (
	ProductLoan           ProductType = "Cho vay"
	ProductGuarantee      ProductType = "Bao lanh"
	ProductLetterOfCredit ProductType = "LC"
)

// ParseProductType trims the raw tag and canonicalizes the known values
// case-insensitively. Unknown tags are kept as given.
func ParseProductType(s string) ProductType {
	s = strings.TrimSpace(s)
	for _, p := range []ProductType{ProductLoan, ProductGuarantee, ProductLetterOfCredit} {
		if fold.String(s) == fold.String(string(p)) {
			return p
		}
	}
	return ProductType(s)
}

// IsContingent reports whether the row is guarantee or letter-of-credit exposure
func (p ProductType) IsContingent() bool {
	return p == ProductGuarantee || p == ProductLetterOfCredit
}

// IsClassified reports whether the tag is one of the three known product types
func (p ProductType) IsClassified() bool {
	return p == ProductLoan || p.IsContingent()
}

// DebtGroup is the non-performing-loan bucket, 1 to 5. Zero means absent.
type DebtGroup int

const (
	DebtGroupAbsent     DebtGroup = 0
	DebtGroupPerforming DebtGroup = 1
	DebtGroupWatchList  DebtGroup = 2
)

// IsNonPerforming reports buckets 3, 4 and 5
func (g DebtGroup) IsNonPerforming() bool {
	return g >= 3 && g <= 5
}

// String renders the bucket, empty when absent
func (g DebtGroup) String() string {
	if g == DebtGroupAbsent {
		return ""
	}
	return fmt.Sprintf("%d", int(g))
}

// CollateralRow is one typed row of the collateral ledger
type CollateralRow struct {
	Line            int
	CustomerKey     string
	Product         ProductType
	CollateralCode  string
	Category        string
	Marker          string
	Balance         decimal.Decimal
	CollateralValue decimal.Decimal
	CustomerName    string
	CustomerType    string
	DebtGroup       DebtGroup
	SecurityID      string
	ValuationDate   time.Time
}

// HasValuationDate reports whether the valuation date parsed
func (r *CollateralRow) HasValuationDate() bool {
	return !r.ValuationDate.IsZero()
}

// PurposeRow is one typed row of the purpose ledger
type PurposeRow struct {
	Line          int
	CustomerKey   string
	ApprovalLevel string
	PurposeCode   string
	PurposeGroup  string
	Marker        string
	Balance       decimal.Decimal
	ContractID    string
	SchemeCode    string
}

// EventKind distinguishes the two auxiliary event sources
type EventKind string

const (
	EventSettlement   EventKind = "settlement"
	EventDisbursement EventKind = "disbursement"
)

// Event is one settlement or disbursement on a given day
type Event struct {
	CustomerKey string
	Date        time.Time
	Kind        EventKind
}

// DelayBucket is the severity class of a late repayment
type DelayBucket string

const (
	DelaySevere   DelayBucket = ">=10"
	DelayModerate DelayBucket = "4-9"
	DelayMinor    DelayBucket = "<4"
)

// Rank orders buckets from most severe (0) to least severe
func (b DelayBucket) Rank() int {
	switch b {
	case DelaySevere:
		return 0
	case DelayModerate:
		return 1
	case DelayMinor:
		return 2
	default:
		return 3
	}
}

// ClassifyDelay buckets a delay in days. ok is false for delays of zero
// days or less, which are not late.
func ClassifyDelay(days int) (bucket DelayBucket, ok bool) {
	switch {
	case days >= 10:
		return DelaySevere, true
	case days >= 4:
		return DelayModerate, true
	case days > 0:
		return DelayMinor, true
	default:
		return "", false
	}
}

// DelayRecord is one repayment instalment from the delay log
type DelayRecord struct {
	Line        int
	CustomerKey string
	DueDate     time.Time
	PaymentDate time.Time
	DelayDays   int
	Bucket      DelayBucket
}

// Day truncates t to its calendar date in UTC
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b
func DaysBetween(a, b time.Time) int {
	return int((Day(b).Unix() - Day(a).Unix()) / 86400)
}

// AssetLocation is one row of the asset-location register
type AssetLocation struct {
	SecurityID string
	AssetType  string
	Address    string
	Province   string
}
