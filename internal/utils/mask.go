package utils

// MaskSignature hides the middle of a visitor signature, keeping the first and
// last four characters ("abc1***z9kk"). Signatures too short to keep anything
// hidden are masked entirely.
func MaskSignature(sig string) string {
	r := []rune(sig)
	if len(r) < 9 {
		return "***"
	}
	return string(r[:4]) + "***" + string(r[len(r)-4:])
}
