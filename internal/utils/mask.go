package utils

// MaskSecret keeps the first four characters of a token so it can be told
// apart in output without being usable. An empty secret stays empty.
func MaskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 4:
		return "*****"
	}
	return s[:4] + "*****"
}
