package flags

import (
	"sort"
	"strings"

	"credit-exposure-reconciler/internal/models"
)

// topExposureRule flags the TopN customers by collateral-side balance
// within each ranked customer type. Ties go to the smaller customer key.
func topExposureRule(r *run) {
	ranked := map[string]models.Flag{
		fold.String(strings.TrimSpace(r.config.IndividualCustomer)): models.FlagTopIndividual,
		fold.String(strings.TrimSpace(r.config.CorporateCustomer)):  models.FlagTopCorporate,
	}

	groups := make(map[models.Flag][]*models.CustomerRecord)
	for _, rec := range r.records {
		if f, ok := ranked[fold.String(strings.TrimSpace(rec.CustomerType))]; ok && rec.CustomerType != "" {
			groups[f] = append(groups[f], rec)
		}
	}

	for f, recs := range groups {
		sort.SliceStable(recs, func(i, j int) bool {
			if c := recs[i].Balance.Cmp(recs[j].Balance); c != 0 {
				return c > 0
			}
			return recs[i].CustomerKey < recs[j].CustomerKey
		})
		n := r.config.TopN
		if n > len(recs) {
			n = len(recs)
		}
		for _, rec := range recs[:n] {
			rec.Raise(f)
		}
	}
}
