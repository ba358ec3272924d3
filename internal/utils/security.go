package utils

// MaskSecret masks a cookie value or token for secure logging
// Keeps the first 4 and last 4 characters visible
//
// Examples:
//   - "040069b5f7a1c2d3e4f5" -> "0400****e4f5"
//   - "abcdefgh" -> "****"
//   - "" -> ""
func MaskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}

	return secret[:4] + "****" + secret[len(secret)-4:]
}

// MaskCookies returns a copy of cookies with every value masked
func MaskCookies(cookies map[string]string) map[string]string {
	masked := make(map[string]string, len(cookies))
	for name, value := range cookies {
		masked[name] = MaskSecret(value)
	}
	return masked
}
