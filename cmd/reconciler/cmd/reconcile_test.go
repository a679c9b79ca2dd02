package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"credit-exposure-reconciler/cmd/reconciler/config"
	"credit-exposure-reconciler/internal/parsers"
)

const (
	collateralCSV = "CIF_KH_VAY,BRANCH_VAY,LOAI,CAP_2,DU_NO_PHAN_BO_QUY_DOI,TS_KW_VND,TEN_KH_VAY,CUSTTPCD,NHOM_NO\n" +
		"1001,HANOI01,Cho vay,101,1000000000,2000000000,Nguyen Van A,Ca nhan,1\n" +
		"KH0042,HANOI01,Cho vay,101,300,0,Cong ty B,Doanh nghiep,2\n"
	purposeCSV = "CUSTSEQLN,BRCD,CAP_PHE_DUYET,MUC_DICH_VAY_CAP_4,DU_NO_QUY_DOI\n" +
		"1001,HANOI01,05,P1,900000000\n" +
		"KH0042,HANOI01,01,P1,300\n" +
		"1002,HANOI01,01,P1,25\n"
	collateralCodesCSV = "CODE CAP 2,CODE\n101,BĐS\n"
	purposeCodesCSV    = "CODE_MDSDV4,GROUP\nP1,Kinh doanh\n"
)

type fixture struct {
	dir             string
	collateral      string
	purpose         string
	collateralCodes string
	purposeCodes    string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
		return path
	}
	return fixture{
		dir:             dir,
		collateral:      write("crm4.csv", collateralCSV),
		purpose:         write("crm32.csv", purposeCSV),
		collateralCodes: write("codes_crm4.csv", collateralCodesCSV),
		purposeCodes:    write("codes_crm32.csv", purposeCodesCSV),
	}
}

func (f fixture) args(extra ...string) []string {
	args := []string{
		"reconcile",
		"--collateral", f.collateral,
		"--purpose", f.purpose,
		"--collateral-codes", f.collateralCodes,
		"--purpose-codes", f.purposeCodes,
	}
	return append(args, extra...)
}

func run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := Execute(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersionCommand(t *testing.T) {
	code, stdout, _ := run("version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "reconciler dev")
}

func TestReconcileConsole(t *testing.T) {
	f := newFixture(t)

	code, stdout, stderr := run(f.args()...)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "CREDIT EXPOSURE RECONCILIATION")
	assert.Contains(t, stdout, "Customers:            3")
	assert.Contains(t, stdout, "=== VARIANCES ===")
	assert.Contains(t, stderr, "Starting reconciliation run")
}

func TestReconcileVerbose(t *testing.T) {
	f := newFixture(t)

	code, _, stderr := run(f.args("--verbose", "--progress")...)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "Starting reconciliation...")
	assert.Contains(t, stderr, "collateral: "+f.collateral)
	assert.Contains(t, stderr, "Reconciliation completed successfully.")
	assert.Contains(t, stderr, "Reconciled 3 customers")
	assert.Contains(t, stderr, "% complete)")
}

func TestReconcileWorkbookInputAndOutput(t *testing.T) {
	f := newFixture(t)

	in := excelize.NewFile()
	rows := [][]interface{}{
		{"CIF_KH_VAY", "BRANCH_VAY", "LOAI", "CAP_2", "DU_NO_PHAN_BO_QUY_DOI", "TS_KW_VND", "TEN_KH_VAY", "CUSTTPCD", "NHOM_NO"},
		{"1001", "HANOI01", "Cho vay", "101", 1000000000, 2000000000, "Nguyen Van A", "Ca nhan", "1"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, in.SetSheetRow("Sheet1", cell, &row))
	}
	workbook := filepath.Join(f.dir, "crm4.xlsx")
	require.NoError(t, in.SaveAs(workbook))
	require.NoError(t, in.Close())

	output := filepath.Join(f.dir, "result.xlsx")
	args := f.args("--output-format", "xlsx", "--output-file", output)
	args[2] = workbook

	code, stdout, stderr := run(args...)
	require.Equal(t, 0, code, stderr)
	assert.Empty(t, stdout)

	out, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer out.Close()

	sheets := out.GetSheetList()
	require.NotEmpty(t, sheets)
	assert.Equal(t, "customers", sheets[0])
	assert.Contains(t, sheets, "run log")

	customers, err := out.GetRows("customers")
	require.NoError(t, err)
	assert.Len(t, customers, 4)
}

func TestReconcileConfigFile(t *testing.T) {
	f := newFixture(t)
	cfg := filepath.Join(f.dir, "reconciler.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("output-format: json\nbranch: hanoi\n"), 0644))

	code, stdout, stderr := run(f.args("--config", cfg)...)
	require.Equal(t, 0, code, stderr)

	var doc struct {
		Summary struct {
			Customers int `json:"customers"`
		} `json:"summary"`
		Sources map[string][]string `json:"sources"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Equal(t, 3, doc.Summary.Customers)
	assert.Equal(t, []string{f.purpose}, doc.Sources[config.InputPurpose])
}

func TestReconcileEnvironment(t *testing.T) {
	f := newFixture(t)
	t.Setenv("RECONCILER_BRANCH", "SAIGON")

	code, _, stderr := run(f.args()...)
	assert.Equal(t, 5, code)
	assert.Contains(t, stderr, "has no rows after filtering")
	assert.Contains(t, stderr, "branch_filter: SAIGON")
}

func TestReconcileRemoteInput(t *testing.T) {
	f := newFixture(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/crm4.csv" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(collateralCSV))
	}))
	defer server.Close()

	args := f.args("--output-format", "csv")
	args[2] = server.URL + "/crm4.csv"

	code, stdout, stderr := run(args...)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "KH0042")
}

func TestReconcileExitCodes(t *testing.T) {
	f := newFixture(t)
	badColumns := filepath.Join(f.dir, "bad.csv")
	require.NoError(t, os.WriteFile(badColumns, []byte("A,B\n1,2\n"), 0644))

	tests := []struct {
		name     string
		args     []string
		exitCode int
		stderr   string
	}{
		{
			name:     "missing purpose",
			args:     []string{"reconcile", "--collateral", f.collateral},
			exitCode: 4,
			stderr:   "purpose is required",
		},
		{
			name:     "input not found",
			args:     []string{"reconcile", "--collateral", filepath.Join(f.dir, "none.csv"), "--purpose", f.purpose},
			exitCode: 2,
			stderr:   "none.csv",
		},
		{
			name: "several inputs not found",
			args: []string{"reconcile",
				"--collateral", filepath.Join(f.dir, "a.csv"),
				"--purpose", filepath.Join(f.dir, "b.csv")},
			exitCode: 2,
			stderr:   "Found 2 errors",
		},
		{
			name:     "invalid output format",
			args:     f.args("--output-format", "pdf"),
			exitCode: 4,
			stderr:   "use one of: console, json, csv, xlsx",
		},
		{
			name:     "workbook output needs a file",
			args:     f.args("--output-format", "xlsx"),
			exitCode: 4,
			stderr:   "--output-file",
		},
		{
			name:     "output directory missing",
			args:     f.args("--output-file", filepath.Join(f.dir, "missing", "out.json")),
			exitCode: 2,
			stderr:   "create the output directory first",
		},
		{
			name:     "invalid evaluation date",
			args:     f.args("--evaluation-date", "31.08.2025"),
			exitCode: 4,
			stderr:   "evaluation-date",
		},
		{
			name:     "ledger missing columns",
			args:     []string{"reconcile", "--collateral", badColumns, "--purpose", f.purpose},
			exitCode: 3,
			stderr:   "missing column(s)",
		},
		{
			name:     "unknown flag",
			args:     []string{"reconcile", "--system-file", "tx.csv"},
			exitCode: 1,
			stderr:   "unknown flag",
		},
		{
			name:     "missing config file",
			args:     f.args("--config", filepath.Join(f.dir, "none.yaml")),
			exitCode: 4,
			stderr:   "config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := run(tt.args...)
			assert.Equal(t, tt.exitCode, code, stderr)
			assert.Contains(t, stderr, tt.stderr)
		})
	}
}

func TestValidateFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	validFile := filepath.Join(tmpDir, "valid.csv")
	require.NoError(t, os.WriteFile(validFile, []byte("test"), 0644))

	tests := []struct {
		name        string
		filePath    string
		expectError bool
	}{
		{"valid file", validFile, false},
		{"empty path", "", true},
		{"non-existent file", "/non/existent/file.csv", true},
		{"directory instead of file", tmpDir, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileExists(tt.filePath, "test file")
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestReadInputs(t *testing.T) {
	f := newFixture(t)
	parser, err := parsers.NewParser(parsers.DefaultParseConfig())
	require.NoError(t, err)

	files := config.InputFiles{
		Collateral:   []string{f.collateral, f.collateral},
		Purpose:      []string{f.purpose},
		PurposeCodes: []string{f.purposeCodes},
	}
	in, err := readInputs(context.Background(), parser, files)
	require.NoError(t, err)

	assert.Equal(t, 4, in.Collateral.Len())
	assert.Equal(t, 3, in.Purpose.Len())
	assert.Equal(t, 1, in.PurposeCodes.Len())
	assert.Nil(t, in.CollateralCodes)
	assert.Nil(t, in.Delays)
	assert.Equal(t, files.Sources(), in.Sources)

	files.Delays = []string{filepath.Join(f.dir, "none.csv")}
	_, err = readInputs(context.Background(), parser, files)
	assert.Error(t, err)
}
