package flags

import (
	"sort"
	"time"

	"credit-exposure-reconciler/internal/models"
	"credit-exposure-reconciler/pkg/errors"
)

// EventCount is the number of events of each kind for one customer on one day
type EventCount struct {
	CustomerKey   string
	Date          time.Time
	Settlements   int
	Disbursements int
}

// Both reports whether the day saw a settlement and a disbursement
func (c EventCount) Both() bool {
	return c.Settlements > 0 && c.Disbursements > 0
}

// sameDayEventsRule flags customers with a settlement and a disbursement
// on the same calendar day. It needs both event sources.
func sameDayEventsRule(r *run) {
	if !r.in.HasSettlements || !r.in.HasDisbursements {
		if r.in.HasSettlements != r.in.HasDisbursements {
			r.diag.Add(errors.New(errors.CategoryValidation, errors.CodeMissingField,
				"same-day event flag needs both settlement and disbursement inputs").
				WithContext("effect", "same-day event flag left empty"))
		}
		return
	}

	log := make([]models.Event, 0, len(r.in.Settlements)+len(r.in.Disbursements))
	for _, src := range [][]models.Event{r.in.Settlements, r.in.Disbursements} {
		for _, ev := range src {
			ev.Date = models.Day(ev.Date)
			log = append(log, ev)
		}
	}
	sort.SliceStable(log, func(i, j int) bool {
		a, b := log[i], log[j]
		if a.CustomerKey != b.CustomerKey {
			return a.CustomerKey < b.CustomerKey
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.Kind < b.Kind
	})
	r.detail.EventLog = log

	// log is sorted, so each (customer, day) group is contiguous
	var counts []EventCount
	for _, ev := range log {
		n := len(counts)
		if n == 0 || counts[n-1].CustomerKey != ev.CustomerKey || !counts[n-1].Date.Equal(ev.Date) {
			counts = append(counts, EventCount{CustomerKey: ev.CustomerKey, Date: ev.Date})
			n++
		}
		switch ev.Kind {
		case models.EventSettlement:
			counts[n-1].Settlements++
		case models.EventDisbursement:
			counts[n-1].Disbursements++
		}
	}
	r.detail.EventCounts = counts

	for _, c := range counts {
		if c.Both() {
			r.raise(c.CustomerKey, models.FlagSameDayEvents)
		}
	}
}
