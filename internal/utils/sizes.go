package utils

import "fmt"

const (
	kilobyte = 1024
	megabyte = 1024 * kilobyte
	gigabyte = 1024 * megabyte
)

// FormatBytes renders a byte count for display.
func FormatBytes(n int64) string {
	switch {
	case n >= gigabyte:
		return fmt.Sprintf("%.2f GB", float64(n)/float64(gigabyte))
	case n >= megabyte:
		return fmt.Sprintf("%.2f MB", float64(n)/float64(megabyte))
	case n >= kilobyte:
		return fmt.Sprintf("%.1f KB", float64(n)/float64(kilobyte))
	}
	return fmt.Sprintf("%d B", n)
}
