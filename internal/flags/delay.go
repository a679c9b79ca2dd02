package flags

import (
	"sort"
	"time"

	"credit-exposure-reconciler/internal/models"
)

// lateRepaymentRule classifies repayment delays of performing customers
// within the reporting window. One customer and due day counts once, at
// its most severe bucket.
func lateRepaymentRule(r *run) {
	if !r.in.HasDelays {
		return
	}

	type dueDay struct {
		key string
		day time.Time
	}
	kept := make(map[dueDay]int)
	var detail []models.DelayRecord

	for _, d := range r.in.Delays {
		year := d.DueDate.Year()
		if year < r.config.DelayWindowStartYear || year > r.config.DelayWindowEndYear {
			continue
		}
		rec, ok := r.byKey[d.CustomerKey]
		if !ok || rec.DebtGroup != models.DebtGroupPerforming {
			continue
		}

		paid := d.PaymentDate
		if paid.IsZero() {
			paid = r.params.EvaluationDate
		}
		d.DelayDays = models.DaysBetween(d.DueDate, paid)
		bucket, late := models.ClassifyDelay(d.DelayDays)
		if !late {
			continue
		}
		d.Bucket = bucket

		k := dueDay{key: d.CustomerKey, day: models.Day(d.DueDate)}
		if i, seen := kept[k]; seen {
			if bucket.Rank() < detail[i].Bucket.Rank() {
				detail[i] = d
			}
			continue
		}
		kept[k] = len(detail)
		detail = append(detail, d)
	}

	sort.SliceStable(detail, func(i, j int) bool {
		if detail[i].CustomerKey != detail[j].CustomerKey {
			return detail[i].CustomerKey < detail[j].CustomerKey
		}
		return detail[i].DueDate.Before(detail[j].DueDate)
	})
	r.detail.Delays = detail

	severe := make(map[string]bool)
	moderate := make(map[string]bool)
	for _, d := range detail {
		switch d.Bucket {
		case models.DelaySevere:
			severe[d.CustomerKey] = true
		case models.DelayModerate:
			moderate[d.CustomerKey] = true
		}
	}
	for key := range severe {
		r.raise(key, models.FlagDelaySevere)
	}
	for key := range moderate {
		if !severe[key] {
			r.raise(key, models.FlagDelayModerate)
		}
	}
}
