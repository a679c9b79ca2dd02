package reconciler

import (
	"github.com/shopspring/decimal"

	"credit-exposure-reconciler/internal/ledger"
	"credit-exposure-reconciler/internal/models"
	"credit-exposure-reconciler/internal/pivot"
)

// Pivots are the per-customer aggregates the join reads
type Pivots struct {
	Collateral pivot.Aggregate
	Purpose    *pivot.Table
}

// BuildPivots pivots both mapped ledgers
func BuildPivots(collateral *ledger.CollateralLedger, purpose *ledger.PurposeLedger) Pivots {
	return Pivots{
		Collateral: pivot.Collateral(collateral.Rows),
		Purpose:    pivot.Purpose(purpose.Rows),
	}
}

// Reconcile outer-joins the two ledgers on customer key. Records follow
// the collateral ledger's first-appearance order, then purpose-only
// customers in purpose-ledger order.
func Reconcile(collateral *ledger.CollateralLedger, purpose *ledger.PurposeLedger, pv Pivots) []*models.CustomerRecord {
	var records []*models.CustomerRecord
	byKey := make(map[string]*models.CustomerRecord)

	for _, row := range collateral.Rows {
		if _, ok := byKey[row.CustomerKey]; ok {
			continue
		}
		rec := models.NewCustomerRecord(row.CustomerKey)
		rec.InCollateral = true
		rec.CustomerName = row.CustomerName
		rec.CustomerType = row.CustomerType
		rec.DebtGroup = row.DebtGroup
		byKey[row.CustomerKey] = rec
		records = append(records, rec)
	}
	for _, row := range purpose.Rows {
		if rec, ok := byKey[row.CustomerKey]; ok {
			rec.InPurpose = true
			continue
		}
		rec := models.NewCustomerRecord(row.CustomerKey)
		rec.InPurpose = true
		byKey[row.CustomerKey] = rec
		records = append(records, rec)
	}

	unclassified, _ := pivot.SumBy(collateral.Rows, func(r models.CollateralRow) bool {
		return !r.Product.IsClassified()
	})
	guarantees, _ := pivot.SumBy(collateral.Rows, func(r models.CollateralRow) bool {
		return r.Product == models.ProductGuarantee
	})
	letters, _ := pivot.SumBy(collateral.Rows, func(r models.CollateralRow) bool {
		return r.Product == models.ProductLetterOfCredit
	})

	for i, rec := range records {
		key := rec.CustomerKey
		rec.Seq = i + 1
		rec.Balance = pv.Collateral.Balance.Total(key)
		rec.CollateralValue = pv.Collateral.Collateral.Total(key)
		rec.PurposeBalance = pv.Purpose.Total(key)
		rec.Guarantee = guarantees[key]
		rec.LetterOfCredit = letters[key]

		rec.VarianceBeforeRedistribution = rec.Balance.Sub(rec.PurposeBalance)
		rec.Unclassified = unclassified[key]
		rec.Absorbed = Absorb(rec.VarianceBeforeRedistribution, rec.Unclassified)
		rec.PurposeTotal = rec.PurposeBalance.Add(rec.Absorbed)
		rec.Variance = rec.Balance.Sub(rec.PurposeTotal)
	}
	return records
}

// Absorb returns how much of the unclassified amount u moves to the purpose
// side given the variance v before redistribution. The whole amount moves
// unless that would widen |v|; then the move is capped at v when the signs
// agree and dropped when they differ.
func Absorb(v, u decimal.Decimal) decimal.Decimal {
	if v.Sub(u).Abs().LessThanOrEqual(v.Abs()) {
		return u
	}
	if v.Sign()*u.Sign() > 0 {
		return v
	}
	return decimal.Zero
}
