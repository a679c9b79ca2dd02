package flags

import "credit-exposure-reconciler/internal/models"

func debtGroupRule(r *run) {
	for _, rec := range r.records {
		switch {
		case rec.DebtGroup == models.DebtGroupWatchList:
			rec.Raise(models.FlagWatchList)
		case rec.DebtGroup.IsNonPerforming():
			rec.Raise(models.FlagNonPerforming)
		}
	}
}
