package utils

import "strconv"

// StringToUint64 parses an id from a URL parameter; 0 on failure.
func StringToUint64(str string) uint64 {
	val, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return 0
	}
	return val
}
