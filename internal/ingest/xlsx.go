package ingest

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// zip 文件头
var zipMagic = []byte{'P', 'K', 0x03, 0x04}

func isXLSX(fileName string, data []byte) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == ".xlsx" || ext == ".xlsm" {
		return true
	}
	return bytes.HasPrefix(data, zipMagic)
}

// parseXLSX 读取第一个工作表，第一行为表头，短行补齐
func parseXLSX(data []byte) ([]string, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: open xlsx: %v", ErrParse, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, ErrEmpty
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read sheet %s: %v", ErrParse, sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, ErrEmpty
	}

	header := rows[0]
	body := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		if len(row) < len(header) {
			padded := make([]string, len(header))
			copy(padded, row)
			row = padded
		}
		body = append(body, row[:len(header)])
	}
	return header, body, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
