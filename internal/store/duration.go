package store

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDuration 将 HH:MM:SS 解析为秒数。分钟与秒必须小于 60，小时不设上限。
func ParseDuration(s string) (int64, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("duration %q: must be in HH:MM:SS format", s)
	}

	var vals [3]int64
	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("duration %q: must be in HH:MM:SS format", s)
		}
		vals[i] = v
	}
	if vals[1] >= 60 || vals[2] >= 60 {
		return 0, fmt.Errorf("duration %q: minutes and seconds must be less than 60", s)
	}
	return vals[0]*3600 + vals[1]*60 + vals[2], nil
}

// FormatDuration 将秒数格式化为 HH:MM:SS，负数按 0 处理
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
