package utils

import "math"

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// NormalizePage clamps page to >= 1 and size to 1..MaxPageSize.
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > MaxPageSize {
		size = DefaultPageSize
	}
	return page, size
}

// Pages is the number of pages needed for total items.
func Pages(total int64, size int) int {
	if size <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(size)))
}
