package parsers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"credit-exposure-reconciler/pkg/errors"
)

func newTestParser(t *testing.T, mutate ...func(*ParseConfig)) *Parser {
	t.Helper()
	config := DefaultParseConfig()
	for _, m := range mutate {
		m(config)
	}
	p, err := NewParser(config)
	require.NoError(t, err)
	return p
}

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func writeWorkbook(t *testing.T, name string, rows ...[]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func requireCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	rerr, ok := errors.AsReconcilerError(err)
	require.True(t, ok, "expected a ReconcilerError, got %T", err)
	assert.Equal(t, code, rerr.Code)
}

func TestParseConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ParseConfig)
		wantErr bool
	}{
		{"defaults", func(c *ParseConfig) {}, false},
		{"semicolon delimiter", func(c *ParseConfig) { c.Delimiter = ';' }, false},
		{"quote delimiter", func(c *ParseConfig) { c.Delimiter = '"' }, true},
		{"zero timeout", func(c *ParseConfig) { c.FetchTimeout = 0 }, true},
		{"no workers", func(c *ParseConfig) { c.MaxConcurrency = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultParseConfig()
			tt.mutate(c)
			if tt.wantErr {
				assert.Error(t, c.Validate())
			} else {
				assert.NoError(t, c.Validate())
			}
		})
	}

	c := DefaultParseConfig()
	c.MaxConcurrency = 0
	_, err := NewParser(c)
	requireCode(t, err, errors.CodeInvalidConfig)
}

func TestParseWorkbook(t *testing.T) {
	path := writeWorkbook(t, "crm4.xlsx",
		[]interface{}{"  CIF_KH_VAY ", "TEN  KHACH HANG", "DU_NO_QUY_DOI"},
		[]interface{}{1001, "Nguyễn Văn A", 1000000000.5},
		[]interface{}{},
		[]interface{}{"1002", " Công ty B ", 300},
	)

	tbl, err := newTestParser(t).Parse(context.Background(), "collateral", path)
	require.NoError(t, err)

	assert.Equal(t, "collateral", tbl.Name)
	assert.Equal(t, []string{"CIF_KH_VAY", "TEN KHACH HANG", "DU_NO_QUY_DOI"}, tbl.Columns)
	require.Equal(t, 2, tbl.Len(), "blank rows are skipped")
	assert.Equal(t, "1001", tbl.Value(0, "CIF_KH_VAY"))
	assert.Equal(t, "1000000000.5", tbl.Value(0, "DU_NO_QUY_DOI"))
	assert.Equal(t, "Công ty B", tbl.Value(1, "TEN KHACH HANG"))
}

func TestParseWorkbookNamedSheet(t *testing.T) {
	f := excelize.NewFile()
	_, err := f.NewSheet("codes")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("codes", "A1", &[]interface{}{"CODE", "LABEL"}))
	require.NoError(t, f.SetSheetRow("codes", "A2", &[]interface{}{"01", "BĐS"}))
	path := filepath.Join(t.TempDir(), "codes.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	tbl, err := newTestParser(t, func(c *ParseConfig) { c.Sheet = "codes" }).
		Parse(context.Background(), "codes", path)
	require.NoError(t, err)
	assert.Equal(t, "BĐS", tbl.Value(0, "LABEL"))

	_, err = newTestParser(t, func(c *ParseConfig) { c.Sheet = "missing" }).
		Parse(context.Background(), "codes", path)
	requireCode(t, err, errors.CodeFileCorrupted)
}

func TestParseCSV(t *testing.T) {
	content := "\xEF\xBB\xBFCIF,Name,Amount\n1001,\"Nguyen, A\",\"1,000\"\n,,\n1002,B,5\n"
	path := writeFile(t, "purpose.csv", []byte(content))

	tbl, err := newTestParser(t).Parse(context.Background(), "purpose", path)
	require.NoError(t, err)

	assert.Equal(t, []string{"CIF", "Name", "Amount"}, tbl.Columns, "byte order mark is stripped")
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "Nguyen, A", tbl.Value(0, "Name"))
	assert.Equal(t, "1,000", tbl.Value(0, "Amount"))
	assert.Equal(t, "1002", tbl.Value(1, "CIF"))
}

func TestParseCSVWindows1258(t *testing.T) {
	encoded, err := charmap.Windows1258.NewEncoder().String("Tên khách hàng\nCông ty\n")
	require.NoError(t, err)
	path := writeFile(t, "legacy.csv", []byte(encoded))

	tbl, err := newTestParser(t).Parse(context.Background(), "legacy", path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Tên khách hàng"}, tbl.Columns)
	assert.Equal(t, "Công ty", tbl.Value(0, "Tên khách hàng"))

	_, err = newTestParser(t, func(c *ParseConfig) { c.FallbackEncoding = false }).
		Parse(context.Background(), "legacy", path)
	requireCode(t, err, errors.CodeEncodingError)
}

func TestParseCSVMalformed(t *testing.T) {
	path := writeFile(t, "bad.csv", []byte("a,b\n1,2\n3,\"x\"y\n"))

	_, err := newTestParser(t).Parse(context.Background(), "bad", path)
	requireCode(t, err, errors.CodeInvalidFormat)

	rerr, _ := errors.AsReconcilerError(err)
	assert.Equal(t, 3, rerr.Context["line"])
}

func TestParseFileErrors(t *testing.T) {
	p := newTestParser(t)
	dir := t.TempDir()

	_, err := p.Parse(context.Background(), "collateral", filepath.Join(dir, "missing.xlsx"))
	requireCode(t, err, errors.CodeFileNotFound)

	_, err = p.Parse(context.Background(), "collateral", filepath.Join(dir, "missing.csv"))
	requireCode(t, err, errors.CodeFileNotFound)

	legacy := writeFile(t, "crm4.xls", []byte("not really a workbook"))
	_, err = p.Parse(context.Background(), "collateral", legacy)
	requireCode(t, err, errors.CodeUnsupportedFile)

	corrupt := writeFile(t, "crm4.xlsx", []byte("not a zip archive"))
	_, err = p.Parse(context.Background(), "collateral", corrupt)
	requireCode(t, err, errors.CodeFileCorrupted)

	rerr, _ := errors.AsReconcilerError(err)
	assert.Equal(t, 2, rerr.GetExitCode())
}

func TestParseEmptyFile(t *testing.T) {
	path := writeFile(t, "empty.csv", nil)

	tbl, err := newTestParser(t).Parse(context.Background(), "empty", path)
	require.NoError(t, err)
	assert.Empty(t, tbl.Columns)
	assert.Equal(t, 0, tbl.Len())
}

func TestParseFilesConcatenatesInOrder(t *testing.T) {
	first := writeWorkbook(t, "a.xlsx",
		[]interface{}{"CIF", "Amount"},
		[]interface{}{"1001", 10},
	)
	second := writeFile(t, "b.csv", []byte("CIF,Branch\n1002,HANOI\n1003,HCM\n"))

	tbl, err := newTestParser(t).ParseFiles(context.Background(), "collateral", []string{first, second})
	require.NoError(t, err)

	assert.Equal(t, "collateral", tbl.Name)
	assert.Equal(t, []string{"CIF", "Amount", "Branch"}, tbl.Columns)
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, []string{"1001", "1002", "1003"}, tbl.Column("CIF"))
	assert.Equal(t, "", tbl.Value(0, "Branch"))
	assert.Equal(t, "", tbl.Value(1, "Amount"))
}

func TestParseFilesNoPaths(t *testing.T) {
	tbl, err := newTestParser(t).ParseFiles(context.Background(), "settlements", nil)
	require.NoError(t, err)
	assert.Nil(t, tbl)
}

func TestParseFilesFailure(t *testing.T) {
	good := writeFile(t, "a.csv", []byte("CIF\n1\n"))
	missing := filepath.Join(t.TempDir(), "gone.csv")

	_, err := newTestParser(t).ParseFiles(context.Background(), "collateral", []string{good, missing})
	requireCode(t, err, errors.CodeFileNotFound)
}

func TestParseCancelled(t *testing.T) {
	path := writeFile(t, "a.csv", []byte("CIF\n1\n"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestParser(t).Parse(ctx, "collateral", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/codes/code_mdsdv4.csv":
			w.Write([]byte("CODE_MDSDV4,GROUP\n01,Kinh doanh\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	assert.True(t, IsRemote(server.URL+"/codes/code_mdsdv4.csv"))
	assert.True(t, IsRemote("HTTPS://example.com/a.xlsx"))
	assert.False(t, IsRemote("/data/a.xlsx"))

	p := newTestParser(t)
	tbl, err := p.Parse(context.Background(), "purpose codes", server.URL+"/codes/code_mdsdv4.csv")
	require.NoError(t, err)
	assert.Equal(t, "Kinh doanh", tbl.Value(0, "GROUP"))

	_, err = p.Parse(context.Background(), "purpose codes", server.URL+"/codes/missing.csv")
	requireCode(t, err, errors.CodeFetchFailed)
}

func TestParseRemoteTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	p := newTestParser(t, func(c *ParseConfig) { c.FetchTimeout = 50 * time.Millisecond })
	_, err := p.Parse(context.Background(), "codes", server.URL+"/slow.csv")
	requireCode(t, err, errors.CodeFetchFailed)
}
