package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"strings"
)

// delimiterCandidates 候选分隔符，按优先级排列
var delimiterCandidates = []rune{',', ';', '\t', '|'}

const sniffSampleLines = 20

// sniffDelimiter 根据样本行推断分隔符
// 选择字段数最稳定且大于 1 的候选；都只有一列时退回逗号
func sniffDelimiter(text []byte) rune {
	sample := sampleLines(text, sniffSampleLines)
	if sample == "" {
		return ','
	}

	best := ','
	bestScore := 0
	for _, delim := range delimiterCandidates {
		score := delimiterScore(sample, delim)
		if score > bestScore {
			best = delim
			bestScore = score
		}
	}
	return best
}

// delimiterScore 分数 = 众数字段数 * 该众数出现的行数；字段数不足 2 时为 0
func delimiterScore(sample string, delim rune) int {
	r := csv.NewReader(strings.NewReader(sample))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	counts := make(map[int]int)
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		counts[len(rec)]++
	}

	modeFields, modeRows := 0, 0
	for fields, rows := range counts {
		if rows > modeRows || (rows == modeRows && fields > modeFields) {
			modeFields, modeRows = fields, rows
		}
	}
	if modeFields < 2 {
		return 0
	}
	return modeFields * modeRows
}

func sampleLines(text []byte, n int) string {
	sc := bufio.NewScanner(bytes.NewReader(text))
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var b strings.Builder
	for i := 0; i < n && sc.Scan(); i++ {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			i--
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func delimiterName(d rune) string {
	if d == '\t' {
		return "\\t"
	}
	return string(d)
}
