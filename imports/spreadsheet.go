package imports

import (
	"encoding/csv"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrorUnsupportedFile = errors.New("unsupported file type: use .xlsx or .csv")

// ParseUpload turns an uploaded spreadsheet into the raw grid the pipeline
// consumes: first row headers, subsequent rows data.
func ParseUpload(fileName string, r io.Reader) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return ParseWorkbook(r)
	case ".csv", ".txt":
		return ParseCSV(r)
	default:
		return nil, ErrorUnsupportedFile
	}
}

// ParseWorkbook reads the first sheet of an Excel workbook.
func ParseWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrorEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ParseCSV reads a delimited text file, tolerating ragged row lengths.
func ParseCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}
