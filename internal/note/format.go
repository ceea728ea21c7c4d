package note

import "fmt"

var byteUnits = []string{"B", "KB", "MB", "GB"}

// FormatBytes renders a byte count for display, e.g. "512 B" or "1.50 MB".
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	index := 0
	value := float64(n)
	for value >= 1024 && index < len(byteUnits)-1 {
		value /= 1024
		index++
	}
	if index == 0 {
		return fmt.Sprintf("%d %s", n, byteUnits[index])
	}
	return fmt.Sprintf("%.2f %s", value, byteUnits[index])
}
