package reconciler

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-exposure-reconciler/internal/models"
	"credit-exposure-reconciler/internal/table"
	"credit-exposure-reconciler/pkg/errors"
)

var collateralHeaders = []string{
	"CIF_KH_VAY", "BRANCH_VAY", "LOAI", "CAP_2", "DU_NO_PHAN_BO_QUY_DOI", "TS_KW_VND",
	"TEN_KH_VAY", "CUSTTPCD", "NHOM_NO", "SECU_SRL_NUM", "VALUATION_DATE",
}

var purposeHeaders = []string{
	"CUSTSEQLN", "BRCD", "CAP_PHE_DUYET", "MUC_DICH_VAY_CAP_4", "DU_NO_QUY_DOI", "KHE_UOC", "SCHEME_CODE",
}

func collateralTable(rows ...[]string) *table.Table {
	return table.New("crm4.xlsx", collateralHeaders, rows)
}

func purposeTable(rows ...[]string) *table.Table {
	return table.New("crm32.xlsx", purposeHeaders, rows)
}

func codeTables() (*table.Table, *table.Table) {
	collateral := table.New("collateral codes", []string{"CODE CAP 2", "CODE"}, [][]string{
		{"101", "BĐS"},
		{"201", "MMTB"},
		{"301", "TCTD khac"},
	})
	purpose := table.New("purpose codes", []string{"CODE_MDSDV4", "GROUP"}, [][]string{
		{"P1", "Kinh doanh"},
		{"P2", "Tieu dung"},
	})
	return collateral, purpose
}

func baseInputs() Inputs {
	cc, pc := codeTables()
	return Inputs{
		Collateral: collateralTable(
			[]string{"1001", "HANOI01", "Cho vay", "101", "1000000000", "2000000000", "Nguyen Van A", "Ca nhan", "1", "S1", "2024-07-27"},
			[]string{"1001.0", "HANOI01", "Cho vay", "201", "500", "700", "Nguyen Van A", "Ca nhan", "1", "S2", ""},
			[]string{"1002", "HANOI02", "Bao lanh", "101", "300", "0", "Cong ty B", "Doanh nghiep", "2", "", ""},
			[]string{"1003", "HCM01", "Khac", "", "40", "0", "Cong ty C", "Doanh nghiep", "3", "", ""},
			[]string{"1003", "HCM01", "Cho vay", "999", "60", "10", "Cong ty C", "Doanh nghiep", "3", "", ""},
		),
		Purpose: purposeTable(
			[]string{"1001", "HANOI01", "05-Hoi dong", "P1", "1000000500", "K1", ""},
			[]string{"1003", "HCM01", "12", "P9", "60", "K3", "ATT01"},
			[]string{"1004", "HANOI01", "01", "", "25", "K4", ""},
		),
		CollateralCodes: cc,
		PurposeCodes:    pc,
		Sources: map[string][]string{
			"collateral": {"crm4.xlsx"},
			"purpose":    {"crm32.xlsx"},
		},
	}
}

func run(t *testing.T, cfg RunConfig, in Inputs) *Result {
	t.Helper()
	p, err := NewPipeline(cfg)
	require.NoError(t, err)
	result, err := p.Run(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func byKey(result *Result) map[string]*models.CustomerRecord {
	out := make(map[string]*models.CustomerRecord)
	for _, rec := range result.Customers {
		out[rec.CustomerKey] = rec
	}
	return out
}

func TestRunConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultRunConfig().Validate())

	cfg := DefaultRunConfig()
	cfg.EvaluationDate = time.Time{}
	cfg.Rules.TopN = 0
	cfg.Layout.Collateral.Balance = " "
	err := cfg.Validate()
	require.Error(t, err)

	rerr, ok := errors.AsReconcilerError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryConfiguration, rerr.Category)
	assert.Contains(t, rerr.Message, "evaluation date")
	assert.Contains(t, rerr.Message, "top_n")
	assert.Contains(t, rerr.Message, "collateral.balance")

	_, err = NewPipeline(cfg)
	assert.Error(t, err)
}

func TestParseHomeProvinces(t *testing.T) {
	assert.Equal(t, []string{"ha noi", "hai phong"}, ParseHomeProvinces(" Ha Noi, ,Hai Phong "))
	assert.Nil(t, ParseHomeProvinces(""))
}

func TestAbsorb(t *testing.T) {
	d := decimal.RequireFromString
	tests := []struct {
		name     string
		variance string
		amount   string
		want     string
	}{
		{"full amount narrows variance", "100", "30", "30"},
		{"full amount closes variance", "30", "30", "30"},
		{"overshoot within bound", "30", "60", "60"},
		{"overshoot capped at variance", "30", "90", "30"},
		{"opposite signs", "-30", "20", "0"},
		{"negative pair", "-50", "-20", "-20"},
		{"zero variance", "0", "10", "0"},
		{"zero amount", "40", "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, u := d(tt.variance), d(tt.amount)
			got := Absorb(v, u)
			assert.True(t, got.Equal(d(tt.want)), "got %s", got)
			assert.True(t, v.Sub(got).Abs().LessThanOrEqual(v.Abs()), "absorption must not widen the variance")
		})
	}
}

func TestRunReconcilesLedgers(t *testing.T) {
	result := run(t, DefaultRunConfig(), baseInputs())
	customers := byKey(result)

	t.Run("outer join keeps every key once", func(t *testing.T) {
		keys := make([]string, 0, len(result.Customers))
		for _, rec := range result.Customers {
			keys = append(keys, rec.CustomerKey)
		}
		assert.Equal(t, []string{"1001", "1002", "1003", "1004"}, keys)
		for i, rec := range result.Customers {
			assert.Equal(t, i+1, rec.Seq)
		}
		assert.True(t, customers["1002"].InCollateral && !customers["1002"].InPurpose)
		assert.True(t, customers["1004"].InPurpose && !customers["1004"].InCollateral)
	})

	t.Run("matched balances give zero variance", func(t *testing.T) {
		a := customers["1001"]
		assert.Equal(t, "1000000500", a.Balance.String())
		assert.Equal(t, "1000000500", a.PurposeTotal.String())
		assert.True(t, a.Variance.IsZero())
		assert.Equal(t, "Nguyen Van A", a.CustomerName)
		assert.Equal(t, models.DebtGroupPerforming, a.DebtGroup)
	})

	t.Run("contingent exposure stays out of the pivot", func(t *testing.T) {
		b := customers["1002"]
		assert.True(t, b.Balance.IsZero())
		assert.Equal(t, "300", b.Guarantee.String())
		assert.True(t, b.LetterOfCredit.IsZero())
		assert.True(t, b.Variance.IsZero())
	})

	t.Run("unclassified balance moves to the purpose side", func(t *testing.T) {
		c := customers["1003"]
		assert.Equal(t, "100", c.Balance.String())
		assert.Equal(t, "40", c.VarianceBeforeRedistribution.String())
		assert.Equal(t, "40", c.Unclassified.String())
		assert.Equal(t, "100", c.PurposeTotal.String())
		assert.True(t, c.Variance.IsZero())
	})

	t.Run("purpose-only customer is zero filled", func(t *testing.T) {
		d := customers["1004"]
		assert.True(t, d.Balance.IsZero())
		assert.Equal(t, "-25", d.Variance.String())
		assert.Equal(t, models.DebtGroupAbsent, d.DebtGroup)
	})

	t.Run("variance never widens", func(t *testing.T) {
		for _, rec := range result.Customers {
			assert.True(t, rec.Variance.Abs().LessThanOrEqual(rec.VarianceBeforeRedistribution.Abs()), rec.CustomerKey)
		}
	})

	t.Run("pivot totals equal category sums", func(t *testing.T) {
		bal := result.Pivots.Collateral.Balance
		for _, key := range bal.Keys {
			sum := decimal.Zero
			for _, c := range bal.Categories {
				sum = sum.Add(bal.Value(key, c))
			}
			assert.True(t, sum.Equal(bal.Total(key)), key)
		}
	})
}

func TestRunMapsCodes(t *testing.T) {
	result := run(t, DefaultRunConfig(), baseInputs())

	rows := result.Collateral.Rows
	assert.Equal(t, "BĐS", rows[0].Category)
	assert.Empty(t, rows[0].Marker)

	// empty code
	assert.Equal(t, models.LabelNoCollateral, rows[3].Category)
	assert.Empty(t, rows[3].Marker)

	// unknown code
	assert.Empty(t, rows[4].Category)
	assert.Equal(t, models.MarkerNeedsMapping, rows[4].Marker)
	assert.Equal(t, 1, result.CollateralMapping.Unmapped)

	purpose := result.Purpose.Rows
	assert.Equal(t, "Kinh doanh", purpose[0].PurposeGroup)
	assert.Equal(t, models.LabelBlankPurpose, purpose[1].PurposeGroup)
	assert.Equal(t, models.MarkerNeedsMapping, purpose[1].Marker)
	assert.Equal(t, models.LabelBlankPurpose, purpose[2].PurposeGroup)
	assert.Empty(t, purpose[2].Marker)

	summary := errors.NewErrorSummary(result.Warnings)
	assert.True(t, summary.HasCode(errors.CodeUnmappedCode))
}

func TestRunDerivesFlags(t *testing.T) {
	in := baseInputs()
	in.Settlements = table.New("settlements", []string{"CUSTSEQLN", "NGAY_TT"}, [][]string{
		{"1001", "2025-03-01"},
		{"1003", "2025-03-01"},
	})
	in.Disbursements = table.New("disbursements", []string{"CIF", "NGAY_GIAI_NGAN"}, [][]string{
		{"1001", "01/03/2025"},
		{"1003", "2025-03-02"},
		{"1003", "not a date"},
	})
	in.Delays = table.New("delays", []string{"CIF_ID", "NGAY_DEN_HAN_TT", "NGAY_THANH_TOAN"}, [][]string{
		{"1001", "2024-05-01", "2024-05-20"},
	})
	in.CashDisbursements = table.New("cash", []string{"FORACID"}, [][]string{{"K3"}})
	in.AssetLocations = table.New("assets", []string{"C01", "C02", "C19"}, [][]string{
		{"S1", "Bat dong san", "12 Tran Phu, Da Nang"},
	})

	cfg := DefaultRunConfig()
	cfg.HomeProvinces = ParseHomeProvinces("Ha Noi")
	result := run(t, cfg, in)
	customers := byKey(result)

	a, b, c := customers["1001"], customers["1002"], customers["1003"]
	assert.True(t, a.Has(models.FlagSameDayEvents))
	assert.False(t, c.Has(models.FlagSameDayEvents))
	assert.True(t, a.Has(models.FlagDelaySevere))
	assert.True(t, a.Has(models.FlagSeniorApproved))
	assert.True(t, a.Has(models.FlagOverdueValuation), "valued 400 days before the evaluation date")
	assert.True(t, a.Has(models.FlagOffTerritory))
	assert.True(t, a.Has(models.FlagTopIndividual))
	assert.True(t, b.Has(models.FlagWatchList))
	assert.True(t, c.Has(models.FlagNonPerforming))
	assert.True(t, c.Has(models.FlagRestructured))
	assert.True(t, c.Has(models.FlagCashDisbursement))
	assert.False(t, c.Has(models.FlagSeniorApproved))

	require.NotNil(t, result.Detail)
	assert.Len(t, result.Detail.EventLog, 4)
	assert.Len(t, result.Detail.Delays, 1)
}

func TestRunIsIdempotent(t *testing.T) {
	first := run(t, DefaultRunConfig(), baseInputs()).CustomerTable()
	second := run(t, DefaultRunConfig(), baseInputs()).CustomerTable()
	assert.Equal(t, first.Columns, second.Columns)
	assert.Equal(t, first.Rows, second.Rows)
}

func TestRunBranchFilter(t *testing.T) {
	cfg := DefaultRunConfig()
	cfg.BranchFilter = "hanoi"
	result := run(t, cfg, baseInputs())

	keys := make([]string, 0, len(result.Customers))
	for _, rec := range result.Customers {
		keys = append(keys, rec.CustomerKey)
	}
	assert.Equal(t, []string{"1001", "1002", "1004"}, keys)
}

func TestRunFatalConditions(t *testing.T) {
	t.Run("empty purpose ledger", func(t *testing.T) {
		in := baseInputs()
		in.Purpose = purposeTable()
		p, err := NewPipeline(DefaultRunConfig())
		require.NoError(t, err)

		_, err = p.Run(context.Background(), in)
		rerr, ok := errors.AsReconcilerError(err)
		require.True(t, ok)
		assert.Equal(t, errors.CodeEmptyLedger, rerr.Code)
		assert.Equal(t, PurposeLedgerName, rerr.Context["ledger"])
		assert.Equal(t, 5, rerr.GetExitCode())
	})

	t.Run("branch filter leaves nothing", func(t *testing.T) {
		cfg := DefaultRunConfig()
		cfg.BranchFilter = "DANANG"
		p, err := NewPipeline(cfg)
		require.NoError(t, err)

		_, err = p.Run(context.Background(), baseInputs())
		rerr, ok := errors.AsReconcilerError(err)
		require.True(t, ok)
		assert.Equal(t, errors.CodeEmptyLedger, rerr.Code)
		assert.Equal(t, CollateralLedgerName, rerr.Context["ledger"])
		assert.Equal(t, "DANANG", rerr.Context["branch_filter"])
	})

	t.Run("missing pivot measure", func(t *testing.T) {
		in := baseInputs()
		in.Collateral = table.New("crm4.xlsx", []string{"CIF_KH_VAY", "LOAI", "TS_KW_VND"}, [][]string{{"1", "Cho vay", "5"}})
		p, err := NewPipeline(DefaultRunConfig())
		require.NoError(t, err)

		_, err = p.Run(context.Background(), in)
		rerr, ok := errors.AsReconcilerError(err)
		require.True(t, ok)
		assert.Equal(t, errors.CodeMissingColumn, rerr.Code)
		assert.Equal(t, []string{"DU_NO_PHAN_BO_QUY_DOI"}, rerr.Context["missing_columns"])
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		p, err := NewPipeline(DefaultRunConfig())
		require.NoError(t, err)

		_, err = p.Run(ctx, baseInputs())
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRunDegradesOnMissingOptionalColumns(t *testing.T) {
	in := baseInputs()
	in.CollateralCodes = table.New("collateral codes", []string{"CODE"}, [][]string{{"x"}})
	in.Delays = table.New("delays", []string{"SOMETHING"}, [][]string{{"1"}})

	result := run(t, DefaultRunConfig(), in)

	for _, row := range result.Collateral.Rows {
		assert.Equal(t, models.LabelNoCollateral, row.Category)
		assert.Empty(t, row.Marker)
	}
	summary := errors.NewErrorSummary(result.Warnings)
	assert.Equal(t, 2, summary.ByCode[errors.CodeMissingColumn])
	for _, rec := range result.Customers {
		assert.False(t, rec.Has(models.FlagDelaySevere))
	}
}

func TestProgressCallbacks(t *testing.T) {
	p, err := NewPipeline(DefaultRunConfig())
	require.NoError(t, err)

	var steps []string
	p.AddProgressCallback(func(pr *Progress) {
		steps = append(steps, pr.CurrentStep)
	})
	_, err = p.Run(context.Background(), baseInputs())
	require.NoError(t, err)

	require.Len(t, steps, totalSteps+1)
	assert.Equal(t, "Preprocessing ledgers", steps[0])
	assert.Equal(t, "Completed", steps[len(steps)-1])
	assert.Equal(t, float64(100), p.CurrentProgress().PercentComplete)
}
