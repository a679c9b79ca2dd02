package pivot

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-exposure-reconciler/internal/models"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBuild(t *testing.T) {
	p := Build("balance", "", []Entry{
		{Key: "B", Category: "PTVT", Amount: d("10")},
		{Key: "A", Category: "BĐS", Amount: d("100")},
		{Key: "B", Category: "BĐS", Amount: d("5")},
		{Key: "B", Category: "PTVT", Amount: d("2.5")},
		{Key: "A", Category: "", Amount: d("1")},
	})

	assert.Equal(t, []string{"B", "A"}, p.Keys, "first-appearance order")
	assert.Equal(t, []string{"(unmapped)", "BĐS", "PTVT"}, p.Categories, "sorted byte-wise")
	assert.True(t, p.Value("B", "PTVT").Equal(d("12.5")))
	assert.True(t, p.Value("A", "PTVT").IsZero(), "missing cells are zero")
	assert.True(t, p.Value("nobody", "PTVT").IsZero())
	assert.True(t, p.Total("B").Equal(d("17.5")))
	assert.True(t, p.Total("A").Equal(d("101")))
}

func TestTotalsEqualCategoryRowSums(t *testing.T) {
	entries := []Entry{
		{Key: "1", Category: "a", Amount: d("1.1")},
		{Key: "2", Category: "b", Amount: d("-3")},
		{Key: "1", Category: "c", Amount: d("7")},
		{Key: "3", Category: "a", Amount: d("0")},
		{Key: "2", Category: "a", Amount: d("4.25")},
	}
	p := Build("balance", "", entries)

	for _, key := range p.Keys {
		sum := decimal.Zero
		for _, c := range p.Categories {
			sum = sum.Add(p.Value(key, c))
		}
		assert.True(t, sum.Equal(p.Total(key)), "customer %s total %s != sum %s", key, p.Total(key), sum)
	}
}

func TestBuildEmpty(t *testing.T) {
	p := Build("balance", "", nil)

	assert.Equal(t, 0, p.Len())
	assert.Empty(t, p.Categories)

	out := p.ToTable("pivot", "customer", "total")
	assert.Equal(t, []string{"customer", "total"}, out.Columns)
	assert.Equal(t, 0, out.Len())
}

func TestCollateralExcludesContingentExposure(t *testing.T) {
	agg := Collateral([]models.CollateralRow{
		{CustomerKey: "1", Product: models.ProductLoan, Category: "BĐS", Balance: d("100"), CollateralValue: d("300")},
		{CustomerKey: "1", Product: models.ProductGuarantee, Category: "BĐS", Balance: d("50"), CollateralValue: d("50")},
		{CustomerKey: "2", Product: models.ProductLetterOfCredit, Category: "PTVT", Balance: d("70")},
		{CustomerKey: "3", Product: models.ProductType("Thau chi"), Category: models.LabelNoCollateral, Balance: d("9")},
	})

	assert.Equal(t, []string{"1", "3"}, agg.Balance.Keys)
	assert.True(t, agg.Balance.Total("1").Equal(d("100")))
	assert.True(t, agg.Collateral.Total("1").Equal(d("300")))
	assert.False(t, agg.Balance.Has("2"))
	assert.Equal(t, []string{"BĐS (collateral value)", "no collateral (collateral value)"}, agg.Collateral.Columns())
	assert.Equal(t, []string{"BĐS", "no collateral"}, agg.Balance.Columns())
}

func TestPurpose(t *testing.T) {
	p := Purpose([]models.PurposeRow{
		{CustomerKey: "1", PurposeGroup: "Kinh doanh", Balance: d("10")},
		{CustomerKey: "1", PurposeGroup: models.LabelBlankPurpose, Balance: d("5")},
	})

	assert.True(t, p.Total("1").Equal(d("15")))
	assert.Equal(t, []string{"(blank)", "Kinh doanh"}, p.Categories)
}

func TestSumBy(t *testing.T) {
	rows := []models.CollateralRow{
		{CustomerKey: "2", Product: models.ProductGuarantee, Balance: d("1")},
		{CustomerKey: "1", Product: models.ProductGuarantee, Balance: d("2")},
		{CustomerKey: "2", Product: models.ProductGuarantee, Balance: d("3")},
		{CustomerKey: "3", Product: models.ProductLoan, Balance: d("4")},
	}

	sums, order := SumBy(rows, func(r models.CollateralRow) bool { return r.Product == models.ProductGuarantee })

	assert.Equal(t, []string{"2", "1"}, order)
	assert.True(t, sums["2"].Equal(d("4")))
	_, ok := sums["3"]
	assert.False(t, ok)
}

func TestToTable(t *testing.T) {
	p := Build("collateral value", CollateralValueSuffix, []Entry{
		{Key: "1", Category: "BĐS", Amount: d("300")},
	})

	out := p.ToTable("collateral pivot", "customer", "total")

	require.Equal(t, []string{"customer", "BĐS (collateral value)", "total"}, out.Columns)
	assert.Equal(t, []string{"1", "300", "300"}, out.Rows[0])
}
