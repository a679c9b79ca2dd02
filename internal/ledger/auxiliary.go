package ledger

import (
	"strings"

	"credit-exposure-reconciler/internal/models"
	"credit-exposure-reconciler/internal/table"
	"credit-exposure-reconciler/pkg/errors"
	"credit-exposure-reconciler/pkg/logger"
)

// usable reports whether an optional input was supplied and carries the
// columns a rule needs. Missing columns are reported with the effect on
// the output.
func usable(t *table.Table, effect string, diag *errors.Collector, columns ...string) bool {
	log := logger.GetGlobalLogger().WithComponent("ledger")
	if t == nil {
		log.WithField("effect", effect).Debug("Optional input not supplied")
		return false
	}
	check := t.Check(columns...)
	if !check.OK() {
		diag.Add(check.Err().WithContext("effect", effect))
		log.WithFields(logger.Fields{"table": t.Name, "missing": check.Missing}).
			Warn("Optional input unusable, " + effect)
		return false
	}
	return true
}

// ReadContractIDs returns the contract identifiers of the cash-disbursement list
func ReadContractIDs(t *table.Table, aux AuxiliaryColumns, diag *errors.Collector) (map[string]bool, bool) {
	if !usable(t, "cash disbursement flag left empty", diag, aux.CashContractID) {
		return nil, false
	}
	ids := make(map[string]bool, t.Len())
	for _, id := range t.Column(aux.CashContractID) {
		if id != "" {
			ids[id] = true
		}
	}
	return ids, true
}

// ReadAssetLocations returns the asset-location register with the province
// parsed from each address
func ReadAssetLocations(t *table.Table, aux AuxiliaryColumns, diag *errors.Collector) ([]models.AssetLocation, bool) {
	if !usable(t, "off-territory flag left empty", diag, aux.AssetSecurityID, aux.AssetType, aux.AssetAddress) {
		return nil, false
	}
	out := make([]models.AssetLocation, 0, t.Len())
	for r := range t.Rows {
		address := t.Value(r, aux.AssetAddress)
		out = append(out, models.AssetLocation{
			SecurityID: t.Value(r, aux.AssetSecurityID),
			AssetType:  t.Value(r, aux.AssetType),
			Address:    address,
			Province:   models.ProvinceFromAddress(address),
		})
	}
	return out, true
}

// ReadSettlements returns one settlement event per row with a readable date
func ReadSettlements(t *table.Table, aux AuxiliaryColumns, diag *errors.Collector) ([]models.Event, bool) {
	if !usable(t, "same-day event flag left empty", diag, aux.SettlementCustomer, aux.SettlementDate) {
		return nil, false
	}
	return readEvents(t, aux.SettlementCustomer, aux.SettlementDate, models.EventSettlement), true
}

// ReadDisbursements returns one disbursement event per row with a readable date
func ReadDisbursements(t *table.Table, aux AuxiliaryColumns, diag *errors.Collector) ([]models.Event, bool) {
	if !usable(t, "same-day event flag left empty", diag, aux.DisbursementCustomer, aux.DisbursementDate) {
		return nil, false
	}
	return readEvents(t, aux.DisbursementCustomer, aux.DisbursementDate, models.EventDisbursement), true
}

func readEvents(t *table.Table, keyCol, dateCol string, kind models.EventKind) []models.Event {
	out := make([]models.Event, 0, t.Len())
	dropped := 0
	for r := range t.Rows {
		d, ok := models.ParseDate(t.Value(r, dateCol))
		if !ok {
			dropped++
			continue
		}
		out = append(out, models.Event{
			CustomerKey: models.NormalizeCustomerKey(t.Value(r, keyCol)),
			Date:        d,
			Kind:        kind,
		})
	}
	if dropped > 0 {
		logger.GetGlobalLogger().WithComponent("ledger").
			WithFields(logger.Fields{"table": t.Name, "dropped": dropped}).
			Debug("Events without a readable date dropped")
	}
	return out
}

// ReadDelays returns the repayment-delay log. Rows whose due date does not
// parse are dropped. An unreadable or absent payment date is left zero.
func ReadDelays(t *table.Table, aux AuxiliaryColumns, diag *errors.Collector) ([]models.DelayRecord, bool) {
	customer := aux.DelayCustomer
	if !t.Has(customer) && strings.TrimSpace(aux.DelayCustomerAlternate) != "" && t.Has(aux.DelayCustomerAlternate) {
		customer = aux.DelayCustomerAlternate
	}
	if !usable(t, "late repayment flags left empty", diag, customer, aux.DelayDueDate) {
		return nil, false
	}
	warnMissing(t, diag, "payment dates taken as the evaluation date", aux.DelayPaymentDate)

	out := make([]models.DelayRecord, 0, t.Len())
	for r := range t.Rows {
		due, ok := models.ParseDate(t.Value(r, aux.DelayDueDate))
		if !ok {
			continue
		}
		rec := models.DelayRecord{
			Line:        r + 1,
			CustomerKey: models.NormalizeCustomerKey(t.Value(r, customer)),
			DueDate:     due,
		}
		if paid, ok := models.ParseDate(t.Value(r, aux.DelayPaymentDate)); ok {
			rec.PaymentDate = paid
		}
		out = append(out, rec)
	}
	return out, true
}
