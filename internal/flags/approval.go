package flags

import (
	"strings"

	"credit-exposure-reconciler/internal/models"
)

// seniorApprovalRule flags customers with a purpose-ledger row approved at a senior level
func seniorApprovalRule(r *run) {
	if r.in.Purpose == nil || !r.in.Purpose.HasApprovalLevel {
		return
	}
	senior := make(map[string]bool, len(r.config.SeniorApprovalCodes))
	for _, c := range r.config.SeniorApprovalCodes {
		senior[models.ParseApprovalCode(c)] = true
	}
	for _, row := range r.purposeRows() {
		if senior[models.ParseApprovalCode(row.ApprovalLevel)] {
			r.raise(row.CustomerKey, models.FlagSeniorApproved)
		}
	}
}

func restructuringRule(r *run) {
	if r.in.Purpose == nil || !r.in.Purpose.HasSchemeCode {
		return
	}
	schemes := make(map[string]bool, len(r.config.RestructuringSchemes))
	for _, s := range r.config.RestructuringSchemes {
		schemes[strings.TrimSpace(s)] = true
	}
	for _, row := range r.purposeRows() {
		if schemes[strings.TrimSpace(row.SchemeCode)] {
			r.raise(row.CustomerKey, models.FlagRestructured)
		}
	}
}

// cashDisbursementRule flags customers whose contract is on the large cash
// disbursement list. The list is already filtered by amount upstream.
func cashDisbursementRule(r *run) {
	if !r.in.HasCashContracts || r.in.Purpose == nil || !r.in.Purpose.HasContractID {
		return
	}
	for _, row := range r.purposeRows() {
		if row.ContractID != "" && r.in.CashContracts[row.ContractID] {
			r.raise(row.CustomerKey, models.FlagCashDisbursement)
		}
	}
}
