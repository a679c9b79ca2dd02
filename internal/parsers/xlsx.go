package parsers

import (
	"os"

	"github.com/xuri/excelize/v2"

	"credit-exposure-reconciler/pkg/errors"
)

// readWorkbook returns the raw cell values of the configured sheet
func (p *Parser) readWorkbook(path, source string) ([][]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, openError(source, err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, source, err)
	}
	defer f.Close()

	sheet := p.config.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, source, err).WithContext("sheet", sheet)
	}
	return rows, nil
}
