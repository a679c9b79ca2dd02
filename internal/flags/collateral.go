package flags

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"credit-exposure-reconciler/internal/models"
)

// ValuationRow is one collateral row subject to periodic revaluation
type ValuationRow struct {
	CustomerKey   string
	SecurityID    string
	Category      string
	ValuationDate time.Time
	DaysOverdue   int
	MonthsOverdue decimal.Decimal
	Overdue       bool
}

// pledgedElsewhereRule flags customers whose raw collateral code names
// another financial institution
func pledgedElsewhereRule(r *run) {
	if r.in.Collateral == nil || !r.in.Collateral.HasCollateralCode {
		return
	}
	marker := fold.String(r.config.PledgedMarker)
	for _, row := range r.collateralRows() {
		if strings.Contains(fold.String(row.CollateralCode), marker) {
			r.raise(row.CustomerKey, models.FlagPledgedElsewhere)
		}
	}
}

// overdueValuationRule flags customers holding real estate, machinery or
// vehicle collateral whose last valuation is more than a year plus the
// tolerance before the evaluation date
func overdueValuationRule(r *run) {
	if r.in.Collateral == nil || !r.in.Collateral.HasValuationDate {
		return
	}

	months := make(map[string]int)
	for _, l := range r.config.RealEstateLabels {
		months[l] = r.config.RealEstateMonths
	}
	for _, l := range append(append([]string{}, r.config.MachineryLabels...), r.config.VehicleLabels...) {
		months[l] = r.config.MachineryVehicleMonths
	}

	divisor := decimal.NewFromInt(int64(r.config.MonthDivisorDays))
	undated := 0
	for _, row := range r.collateralRows() {
		threshold, ok := months[row.Category]
		if !ok {
			continue
		}
		if !row.HasValuationDate() {
			undated++
			continue
		}

		elapsed := models.DaysBetween(row.ValuationDate, r.params.EvaluationDate)
		v := ValuationRow{
			CustomerKey:   row.CustomerKey,
			SecurityID:    row.SecurityID,
			Category:      row.Category,
			ValuationDate: row.ValuationDate,
			DaysOverdue:   elapsed - r.config.ValuationBaseDays,
			MonthsOverdue: decimal.NewFromInt(int64(elapsed)).Div(divisor).
				Sub(decimal.NewFromInt(int64(threshold))).Round(2),
		}
		v.Overdue = v.DaysOverdue > r.config.ValuationToleranceDays
		if v.Overdue {
			r.raise(row.CustomerKey, models.FlagOverdueValuation)
		}
		r.detail.Valuations = append(r.detail.Valuations, v)
	}

	if undated > 0 {
		r.logger.WithField("rows", undated).Debug("Collateral rows without a readable valuation date skipped")
	}
}
