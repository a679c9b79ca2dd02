package models

import "github.com/shopspring/decimal"

// Flag names one risk indicator column of the customer table
type Flag string

const (
	FlagWatchList        Flag = "watch-list (group 2)"
	FlagNonPerforming    Flag = "non-performing"
	FlagSeniorApproved   Flag = "senior approved"
	FlagRestructured     Flag = "restructured"
	FlagCashDisbursement Flag = "large cash disbursement"
	FlagPledgedElsewhere Flag = "pledged at other institution"
	FlagTopIndividual    Flag = "top exposure individual"
	FlagTopCorporate     Flag = "top exposure corporate"
	FlagOverdueValuation Flag = "overdue collateral valuation"
	FlagOffTerritory     Flag = "off-territory collateral"
	FlagSameDayEvents    Flag = "same-day disbursement and settlement"
	FlagDelaySevere      Flag = "late repayment >=10 days"
	FlagDelayModerate    Flag = "late repayment 4-9 days"
)

// AllFlags lists every flag in output column order
var AllFlags = []Flag{
	FlagWatchList,
	FlagNonPerforming,
	FlagSeniorApproved,
	FlagRestructured,
	FlagCashDisbursement,
	FlagPledgedElsewhere,
	FlagTopIndividual,
	FlagTopCorporate,
	FlagOverdueValuation,
	FlagOffTerritory,
	FlagSameDayEvents,
	FlagDelaySevere,
	FlagDelayModerate,
}

// CustomerRecord is one row of the reconciled customer table. Category
// breakdowns live in the pivots; the record carries the totals.
type CustomerRecord struct {
	Seq          int
	CustomerKey  string
	CustomerName string
	CustomerType string
	DebtGroup    DebtGroup

	InCollateral bool
	InPurpose    bool

	// Collateral side, drawn exposure only
	Balance         decimal.Decimal
	CollateralValue decimal.Decimal

	// Purpose side. PurposeTotal is PurposeBalance plus Absorbed.
	PurposeBalance decimal.Decimal
	Unclassified   decimal.Decimal
	Absorbed       decimal.Decimal
	PurposeTotal   decimal.Decimal

	VarianceBeforeRedistribution decimal.Decimal
	Variance                     decimal.Decimal

	Guarantee      decimal.Decimal
	LetterOfCredit decimal.Decimal

	Flags map[Flag]bool
}

// NewCustomerRecord creates an empty record for key
func NewCustomerRecord(key string) *CustomerRecord {
	return &CustomerRecord{CustomerKey: key, Flags: make(map[Flag]bool)}
}

// Raise sets a flag
func (r *CustomerRecord) Raise(f Flag) {
	r.Flags[f] = true
}

// Has reports whether a flag is raised
func (r *CustomerRecord) Has(f Flag) bool {
	return r.Flags[f]
}

// FlagCell renders a flag as FlagMark or ""
func (r *CustomerRecord) FlagCell(f Flag) string {
	if r.Flags[f] {
		return FlagMark
	}
	return ""
}
