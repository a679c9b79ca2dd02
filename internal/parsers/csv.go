package parsers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"credit-exposure-reconciler/pkg/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV reads a delimited text file. Files that are not valid UTF-8 are
// decoded as Windows-1258 when the fallback is enabled.
func (p *Parser) readCSV(path, source string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, openError(source, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	if !utf8.Valid(data) {
		if !p.config.FallbackEncoding {
			return nil, errors.ParseError(errors.CodeEncodingError, source, invalidLine(data),
				fmt.Errorf("invalid UTF-8 encoding detected"))
		}
		decoded, err := charmap.Windows1258.NewDecoder().Bytes(data)
		if err != nil {
			return nil, errors.ParseError(errors.CodeEncodingError, source, invalidLine(data), err)
		}
		p.logger.WithField("file_path", source).Warn("File is not UTF-8, decoded as Windows-1258")
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = p.config.Delimiter
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			if pe, ok := err.(*csv.ParseError); ok {
				line = pe.Line
			}
			return nil, errors.ParseError(errors.CodeInvalidFormat, source, line, err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// invalidLine returns the 1-based line holding the first invalid UTF-8 byte
func invalidLine(data []byte) int {
	line := 1
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size <= 1 {
			return line
		}
		if r == '\n' {
			line++
		}
		data = data[size:]
	}
	return line
}
