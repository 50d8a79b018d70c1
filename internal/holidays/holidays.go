// Package holidays 提供固定六个国家的法定节假日日历。
package holidays

import (
	"errors"
	"sort"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/es"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/it"
	"github.com/rickar/cal/v2/us"
)

// ErrUnknownCountry 不在支持列表中的国家
var ErrUnknownCountry = errors.New("unknown holiday country")

// Holiday 某一天的节假日
type Holiday struct {
	Date time.Time `json:"date"`
	Name string    `json:"name"`
}

var calendars = map[string][]*cal.Holiday{
	"Italy":         it.Holidays,
	"Spain":         es.Holidays,
	"United States": us.Holidays,
	"France":        fr.Holidays,
	"Germany":       de.Holidays,
	"UK":            gb.Holidays,
}

// countryOrder 页面下拉框顺序
var countryOrder = []string{"Italy", "Spain", "United States", "France", "Germany", "UK"}

// Countries 支持的国家列表（固定）
func Countries() []string {
	return append([]string(nil), countryOrder...)
}

// Supported 国家是否在支持列表中
func Supported(country string) bool {
	_, ok := calendars[country]
	return ok
}

// ForYears 返回指定年份内的节假日，按日期、名称排序
// 使用法定日期（非调休后的观察日）
func ForYears(country string, years ...int) ([]Holiday, error) {
	list, ok := calendars[country]
	if !ok {
		return nil, ErrUnknownCountry
	}

	var out []Holiday
	for _, year := range years {
		for _, h := range list {
			actual, _ := h.Calc(year)
			if actual.IsZero() {
				continue
			}
			out = append(out, Holiday{
				Date: time.Date(actual.Year(), actual.Month(), actual.Day(), 0, 0, 0, 0, time.UTC),
				Name: h.Name,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Between 返回 [start, end] 覆盖年份内的节假日
func Between(country string, start, end time.Time) ([]Holiday, error) {
	if end.Before(start) {
		start, end = end, start
	}
	years := make([]int, 0, end.Year()-start.Year()+1)
	for y := start.Year(); y <= end.Year(); y++ {
		years = append(years, y)
	}
	return ForYears(country, years...)
}
