package model

import "time"

// ColumnKind 列类型推断结果
type ColumnKind string

const (
	ColumnKindText     ColumnKind = "text"
	ColumnKindNumeric  ColumnKind = "numeric"
	ColumnKindDatetime ColumnKind = "datetime"
)

// Column 原始数据列
type Column struct {
	Name string     `json:"name"`
	Kind ColumnKind `json:"kind"`
}

// Dataset 上传解析后的原始数据表（列名任意，单元格保留原始文本）
type Dataset struct {
	ID        string     `json:"id"`        // 文件内容 SHA-256
	FileName  string     `json:"fileName"`  // 原始文件名
	Size      int64      `json:"size"`      // 字节数
	Delimiter string     `json:"delimiter"` // 识别出的分隔符（xlsx 为空）
	Encoding  string     `json:"encoding"`  // 识别出的编码
	Columns   []Column   `json:"columns"`
	Rows      [][]string `json:"-"`
	LoadedAt  time.Time  `json:"loadedAt"`
}

// ColumnNames 返回列名列表
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex 按列名查找下标，不存在返回 -1
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// RowCount 数据行数（不含表头）
func (d *Dataset) RowCount() int {
	return len(d.Rows)
}

// Preview 返回前 n 行
func (d *Dataset) Preview(n int) [][]string {
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	return d.Rows[:n]
}
