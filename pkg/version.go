package pkg

import (
	"strconv"
	"strings"
)

// CompareVersions compares two dot-separated numeric version strings
// component-wise, left to right. A missing component counts as 0.
// Returns -1 when a < b, 1 when a > b and 0 when equal.
// The comparison is numeric, not lexicographic: "3.10" > "3.9".
func CompareVersions(a, b string) int {
	aParts := strings.Split(a, ".")
	bParts := strings.Split(b, ".")

	length := len(aParts)
	if len(bParts) > length {
		length = len(bParts)
	}

	for i := 0; i < length; i++ {
		var aNum, bNum int
		if i < len(aParts) {
			aNum, _ = strconv.Atoi(aParts[i])
		}
		if i < len(bParts) {
			bNum, _ = strconv.Atoi(bParts[i])
		}
		if aNum < bNum {
			return -1
		}
		if aNum > bNum {
			return 1
		}
	}

	return 0
}
