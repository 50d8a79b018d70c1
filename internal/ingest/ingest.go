// Package ingest 负责把上传文件解析为原始数据表：
// 自动识别编码与分隔符，xlsx 走 excelize，解析结果按文件内容缓存。
package ingest

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"html"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/microcosm-cc/bluemonday"

	"trendcast/internal/model"
)

var (
	// ErrParse 文件无法解析
	ErrParse = errors.New("malformed dataset")
	// ErrTooFewColumns 至少需要两列才能选择日期列和数值列
	ErrTooFewColumns = errors.New("dataset needs at least two columns")
	// ErrEmpty 空文件
	ErrEmpty = errors.New("dataset is empty")
)

const kindSampleRows = 200

var (
	headerPolicyOnce sync.Once
	headerPolicy     *bluemonday.Policy
)

// Fingerprint 文件身份：内容的 SHA-256
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Parse 解析上传文件为原始数据表
func Parse(fileName string, data []byte) (*model.Dataset, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmpty
	}

	var (
		header []string
		rows   [][]string
		delim  string
		enc    string
		err    error
	)

	if isXLSX(fileName, data) {
		header, rows, err = parseXLSX(data)
		if err != nil {
			return nil, err
		}
		enc = "xlsx"
	} else {
		var text []byte
		text, enc, err = decodeText(data)
		if err != nil {
			return nil, err
		}
		d := sniffDelimiter(text)
		delim = delimiterName(d)
		header, rows, err = parseDelimited(text, d)
		if err != nil {
			return nil, err
		}
	}

	if len(header) < 2 {
		return nil, ErrTooFewColumns
	}

	names := normalizeHeader(header)
	columns := make([]model.Column, len(names))
	for i, name := range names {
		columns[i] = model.Column{Name: name, Kind: inferKind(rows, i)}
	}

	return &model.Dataset{
		ID:        Fingerprint(data),
		FileName:  filepath.Base(fileName),
		Size:      int64(len(data)),
		Delimiter: delim,
		Encoding:  enc,
		Columns:   columns,
		Rows:      rows,
		LoadedAt:  time.Now(),
	}, nil
}

func parseDelimited(text []byte, delim rune) ([]string, [][]string, error) {
	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = delim
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(records) == 0 {
		return nil, nil, ErrEmpty
	}
	return records[0], records[1:], nil
}

// normalizeHeader 清洗表头：去除 HTML、空列名补 "Unnamed: N"、重名追加 ".1" ".2"
func normalizeHeader(header []string) []string {
	headerPolicyOnce.Do(func() {
		headerPolicy = bluemonday.StrictPolicy()
	})

	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(html.UnescapeString(headerPolicy.Sanitize(h)))
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

// inferKind 根据前若干个非空单元格推断列类型
func inferKind(rows [][]string, col int) model.ColumnKind {
	numeric, datetime, seen := true, true, 0
	for _, row := range rows {
		if seen >= kindSampleRows {
			break
		}
		if col >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		seen++
		if numeric {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				numeric = false
			}
		}
		if datetime {
			if _, err := dateparse.ParseIn(cell, time.UTC); err != nil {
				datetime = false
			}
		}
		if !numeric && !datetime {
			return model.ColumnKindText
		}
	}
	switch {
	case seen == 0:
		return model.ColumnKindText
	case numeric:
		return model.ColumnKindNumeric
	case datetime:
		return model.ColumnKindDatetime
	}
	return model.ColumnKindText
}
