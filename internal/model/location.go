package model

import (
	"strconv"
	"strings"
)

// FormatLocation renders box coordinates with the shortest exact decimal form,
// so integer boxes come out as "10,20,110,220".
func FormatLocation(x1, y1, x2, y2 float64) string {
	parts := []string{
		strconv.FormatFloat(x1, 'f', -1, 64),
		strconv.FormatFloat(y1, 'f', -1, 64),
		strconv.FormatFloat(x2, 'f', -1, 64),
		strconv.FormatFloat(y2, 'f', -1, 64),
	}
	return strings.Join(parts, ",")
}
