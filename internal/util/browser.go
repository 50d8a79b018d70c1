package util

import (
	"errors"
	"fmt"
	"math"
	"os/exec"
	"runtime"
)

// launcher 打开 URL 的外部命令
type launcher struct {
	name string
	args []string
}

// browserLaunchers 按优先级返回当前系统可尝试的打开方式
func browserLaunchers(goos, url string) []launcher {
	switch goos {
	case "windows":
		// rundll32 在 Windows 7 上比 cmd /c start 稳定
		return []launcher{
			{"rundll32", []string{"url.dll,FileProtocolHandler", url}},
			{"explorer", []string{url}},
		}
	case "darwin":
		return []launcher{{"open", []string{url}}}
	}
	out := []launcher{{"xdg-open", []string{url}}}
	for _, b := range []string{"sensible-browser", "google-chrome", "firefox", "chromium-browser"} {
		out = append(out, launcher{b, []string{url}})
	}
	return out
}

// OpenBrowser 依次尝试各打开方式，全部失败时返回汇总错误
func OpenBrowser(url string) error {
	var errs []error
	for _, l := range browserLaunchers(runtime.GOOS, url) {
		err := exec.Command(l.name, l.args...).Start()
		if err == nil {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", l.name, err))
	}
	return errors.Join(errs...)
}

// FormatPercent 比例格式化为百分比，如 0.8 → "80.00%"
func FormatPercent(value float64) string {
	if math.IsNaN(value) {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", value*100)
}

// FormatNumber 保留 4 位小数，NaN 输出 "-"
func FormatNumber(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "-"
	}
	return fmt.Sprintf("%.4f", value)
}
