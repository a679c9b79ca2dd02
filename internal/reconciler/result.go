package reconciler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"credit-exposure-reconciler/internal/flags"
	"credit-exposure-reconciler/internal/ledger"
	"credit-exposure-reconciler/internal/mapper"
	"credit-exposure-reconciler/internal/models"
	"credit-exposure-reconciler/internal/table"
	"credit-exposure-reconciler/pkg/errors"
	"credit-exposure-reconciler/pkg/logger"
)

// Customer table column names
const (
	ColSeq             = "STT"
	ColCustomerType    = "customer type"
	ColCustomerKey     = "customer key"
	ColCustomerName    = "customer name"
	ColDebtGroup       = "debt group"
	ColTotalBalance    = "total balance"
	ColTotalCollateral = "total collateral value"
	ColUnclassified    = models.LabelBlankPurpose
	ColPurposeTotal    = "purpose total"
	ColVariance        = "variance"
	ColGuarantee       = "guarantee"
	ColLetterOfCredit  = "letter of credit"

	// PurposeSuffix marks purpose-pivot columns in the customer table
	PurposeSuffix = " (purpose)"
)

const dateLayout = "2006-01-02"

// Result holds the reconciled customer records and every intermediate
// table of one run
type Result struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Config     RunConfig `json:"config"`

	Customers []*models.CustomerRecord `json:"customers"`

	Collateral        *ledger.CollateralLedger `json:"-"`
	Purpose           *ledger.PurposeLedger    `json:"-"`
	Pivots            Pivots                   `json:"-"`
	CollateralMapping mapper.Stats             `json:"collateral_mapping"`
	PurposeMapping    mapper.Stats             `json:"purpose_mapping"`
	Detail            *flags.Detail            `json:"-"`

	Warnings []*errors.ReconcilerError `json:"warnings"`
	RunLog   []logger.Entry            `json:"run_log,omitempty"`
	Sources  map[string][]string       `json:"sources,omitempty"`
}

// Summary are the headline figures of a run
type Summary struct {
	Customers      int                 `json:"customers"`
	CollateralOnly int                 `json:"collateral_only"`
	PurposeOnly    int                 `json:"purpose_only"`
	WithVariance   int                 `json:"with_variance"`
	TotalBalance   decimal.Decimal     `json:"total_balance"`
	TotalPurpose   decimal.Decimal     `json:"total_purpose"`
	TotalVariance  decimal.Decimal     `json:"total_variance"`
	FlagCounts     map[models.Flag]int `json:"flag_counts"`
	Warnings       int                 `json:"warnings"`
}

// Summary computes the headline figures
func (r *Result) Summary() Summary {
	s := Summary{
		Customers:  len(r.Customers),
		FlagCounts: make(map[models.Flag]int),
		Warnings:   len(r.Warnings),
	}
	for _, rec := range r.Customers {
		switch {
		case rec.InCollateral && !rec.InPurpose:
			s.CollateralOnly++
		case rec.InPurpose && !rec.InCollateral:
			s.PurposeOnly++
		}
		if !rec.Variance.IsZero() {
			s.WithVariance++
		}
		s.TotalBalance = s.TotalBalance.Add(rec.Balance)
		s.TotalPurpose = s.TotalPurpose.Add(rec.PurposeTotal)
		s.TotalVariance = s.TotalVariance.Add(rec.Variance)
		for f := range rec.Flags {
			s.FlagCounts[f]++
		}
	}
	return s
}

// CustomerTable renders the reconciled customer records with every pivot
// column, total and flag
func (r *Result) CustomerTable() *table.Table {
	balance := r.Pivots.Collateral.Balance
	value := r.Pivots.Collateral.Collateral
	purpose := r.Pivots.Purpose

	columns := []string{ColSeq, ColCustomerType, ColCustomerKey, ColCustomerName, ColDebtGroup}
	columns = append(columns, balance.Columns()...)
	columns = append(columns, value.Columns()...)
	columns = append(columns, ColTotalBalance, ColTotalCollateral)
	for _, c := range purpose.Categories {
		columns = append(columns, c+PurposeSuffix)
	}
	columns = append(columns, ColUnclassified, ColPurposeTotal, ColVariance, ColGuarantee, ColLetterOfCredit)
	for _, f := range models.AllFlags {
		columns = append(columns, string(f))
	}

	out := table.New("customers", columns, nil)
	for _, rec := range r.Customers {
		row := make([]string, 0, len(columns))
		row = append(row,
			fmt.Sprintf("%d", rec.Seq),
			rec.CustomerType,
			rec.CustomerKey,
			rec.CustomerName,
			rec.DebtGroup.String(),
		)
		for _, c := range balance.Categories {
			row = append(row, balance.Value(rec.CustomerKey, c).String())
		}
		for _, c := range value.Categories {
			row = append(row, value.Value(rec.CustomerKey, c).String())
		}
		row = append(row, rec.Balance.String(), rec.CollateralValue.String())
		for _, c := range purpose.Categories {
			row = append(row, purpose.Value(rec.CustomerKey, c).String())
		}
		row = append(row,
			rec.Unclassified.String(),
			rec.PurposeTotal.String(),
			rec.Variance.String(),
			rec.Guarantee.String(),
			rec.LetterOfCredit.String(),
		)
		for _, f := range models.AllFlags {
			row = append(row, rec.FlagCell(f))
		}
		out.AddRow(row...)
	}
	return out
}

// AuditTables renders the intermediate tables in export order
func (r *Result) AuditTables() []*table.Table {
	tables := []*table.Table{
		r.collateralRowsTable(),
		r.Pivots.Collateral.Balance.ToTable("collateral balance pivot", ColCustomerKey, ColTotalBalance),
		r.Pivots.Collateral.Collateral.ToTable("collateral value pivot", ColCustomerKey, ColTotalCollateral),
		r.purposeRowsTable(),
		r.Pivots.Purpose.ToTable("purpose pivot", ColCustomerKey, ColPurposeTotal),
	}
	if r.Detail != nil {
		tables = append(tables,
			r.valuationTable(),
			r.assetTable(),
			r.eventLogTable(),
			r.eventCountTable(),
			r.delayTable(),
		)
	}
	return append(tables, r.DiagnosticsTable(), r.RunTable(), r.runLogTable())
}

func (r *Result) collateralRowsTable() *table.Table {
	t := table.New("collateral rows", []string{
		"line", ColCustomerKey, "product", "collateral code", "category", "marker",
		"balance", "collateral value", "security id", "valuation date",
	}, nil)
	if r.Collateral == nil {
		return t
	}
	for _, row := range r.Collateral.Rows {
		t.AddRow(
			fmt.Sprintf("%d", row.Line),
			row.CustomerKey,
			string(row.Product),
			row.CollateralCode,
			row.Category,
			row.Marker,
			row.Balance.String(),
			row.CollateralValue.String(),
			row.SecurityID,
			formatDate(row.ValuationDate),
		)
	}
	return t
}

func (r *Result) purposeRowsTable() *table.Table {
	t := table.New("purpose rows", []string{
		"line", ColCustomerKey, "approval level", "approval code", "purpose code", "purpose group",
		"marker", "balance", "contract id", "scheme code",
	}, nil)
	if r.Purpose == nil {
		return t
	}
	for _, row := range r.Purpose.Rows {
		t.AddRow(
			fmt.Sprintf("%d", row.Line),
			row.CustomerKey,
			row.ApprovalLevel,
			models.ParseApprovalCode(row.ApprovalLevel),
			row.PurposeCode,
			row.PurposeGroup,
			row.Marker,
			row.Balance.String(),
			row.ContractID,
			row.SchemeCode,
		)
	}
	return t
}

func (r *Result) valuationTable() *table.Table {
	t := table.New("valuation detail", []string{
		ColCustomerKey, "security id", "category", "valuation date", "days overdue", "months overdue", "overdue",
	}, nil)
	for _, v := range r.Detail.Valuations {
		mark := ""
		if v.Overdue {
			mark = models.FlagMark
		}
		t.AddRow(v.CustomerKey, v.SecurityID, v.Category, formatDate(v.ValuationDate),
			fmt.Sprintf("%d", v.DaysOverdue), v.MonthsOverdue.String(), mark)
	}
	return t
}

func (r *Result) assetTable() *table.Table {
	t := table.New("matched assets", []string{
		"security id", "asset type", "address", "province", "off territory",
	}, nil)
	for _, m := range r.Detail.MatchedAssets {
		mark := ""
		if m.OffTerritory {
			mark = models.FlagMark
		}
		t.AddRow(m.SecurityID, m.AssetType, m.Address, m.Province, mark)
	}
	return t
}

func (r *Result) eventLogTable() *table.Table {
	t := table.New("event log", []string{ColCustomerKey, "date", "kind"}, nil)
	for _, ev := range r.Detail.EventLog {
		t.AddRow(ev.CustomerKey, formatDate(ev.Date), string(ev.Kind))
	}
	return t
}

func (r *Result) eventCountTable() *table.Table {
	t := table.New("event counts", []string{
		ColCustomerKey, "date", string(models.EventDisbursement), string(models.EventSettlement), "both",
	}, nil)
	for _, c := range r.Detail.EventCounts {
		both := "0"
		if c.Both() {
			both = "1"
		}
		t.AddRow(c.CustomerKey, formatDate(c.Date),
			fmt.Sprintf("%d", c.Disbursements), fmt.Sprintf("%d", c.Settlements), both)
	}
	return t
}

func (r *Result) delayTable() *table.Table {
	t := table.New("delay detail", []string{
		ColCustomerKey, "due date", "payment date", "delay days", "bucket",
	}, nil)
	for _, d := range r.Detail.Delays {
		t.AddRow(d.CustomerKey, formatDate(d.DueDate), formatDate(d.PaymentDate),
			fmt.Sprintf("%d", d.DelayDays), string(d.Bucket))
	}
	return t
}

// DiagnosticsTable lists the run warnings
func (r *Result) DiagnosticsTable() *table.Table {
	t := table.New("diagnostics", []string{"category", "code", "message", "suggestion", "context"}, nil)
	for _, w := range r.Warnings {
		keys := make([]string, 0, len(w.Context))
		for k := range w.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctx := make([]string, 0, len(keys))
		for _, k := range keys {
			ctx = append(ctx, fmt.Sprintf("%s=%v", k, w.Context[k]))
		}
		t.AddRow(string(w.Category), string(w.Code), w.Message, w.Suggestion, strings.Join(ctx, "; "))
	}
	return t
}

// RunTable describes the parameters and inputs of the run
func (r *Result) RunTable() *table.Table {
	t := table.New("run", []string{"setting", "value"}, nil)
	t.AddRow("run id", r.RunID)
	t.AddRow("started at", r.StartedAt.Format(time.RFC3339))
	t.AddRow("evaluation date", formatDate(r.Config.EvaluationDate))

	branch := r.Config.BranchFilter
	if strings.TrimSpace(branch) == "" {
		branch = "(no filter)"
	}
	t.AddRow("branch filter", branch)

	provinces := strings.Join(r.Config.HomeProvinces, ", ")
	if provinces == "" {
		provinces = "(none)"
	}
	t.AddRow("home provinces", provinces)

	names := make([]string, 0, len(r.Sources))
	for name := range r.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t.AddRow("files: "+name, strings.Join(r.Sources[name], ", "))
	}
	t.AddRow("customers", fmt.Sprintf("%d", len(r.Customers)))
	t.AddRow("warnings", fmt.Sprintf("%d", len(r.Warnings)))
	return t
}

func (r *Result) runLogTable() *table.Table {
	t := table.New("run log", []string{"time", "level", "message", "fields"}, nil)
	for _, e := range r.RunLog {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]string, 0, len(keys))
		for _, k := range keys {
			fields = append(fields, fmt.Sprintf("%s=%v", k, e.Fields[k]))
		}
		t.AddRow(e.Time.Format(time.RFC3339), e.Level, e.Message, strings.Join(fields, " "))
	}
	return t
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
