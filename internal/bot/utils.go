package bot

import (
	"github.com/keepmind9/telebloc/pkg/constants"
)

// maskSecret masks sensitive information for logging
func maskSecret(s string) string {
	if len(s) <= constants.MinTokenLengthForMasking {
		return "***"
	}
	return s[:constants.TokenMaskPrefixLength] + "***" + s[len(s)-constants.TokenMaskSuffixLength:]
}
