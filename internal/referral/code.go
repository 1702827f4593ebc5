package referral

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Referral codes are the 8 hex chars after the 0x prefix of the wallet
// address, lowercased. Deterministic: same wallet, same code, no storage
// lookup needed to derive it.
var codePattern = regexp.MustCompile(`^[a-f0-9]{8}$`)

func DeriveReferralCode(wallet string) (string, error) {
	w := strings.TrimPrefix(strings.TrimSpace(wallet), "0x")
	if len(w) < 8 {
		return "", fmt.Errorf("wallet address too short for referral code: %q", wallet)
	}
	code := strings.ToLower(w[:8])
	if !codePattern.MatchString(code) {
		return "", fmt.Errorf("wallet address yields invalid referral code: %q", code)
	}
	return code, nil
}

func IsValidReferralCode(code string) bool {
	return codePattern.MatchString(code)
}

// BuildReferralLink produces the shareable signup URL for a wallet.
func BuildReferralLink(origin string, wallet string) (string, error) {
	code, err := DeriveReferralCode(wallet)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/signup?ref=%s", strings.TrimRight(origin, "/"), code), nil
}

// ParseReferralCode extracts and validates the ref query parameter from a
// signup URL. Empty string when absent or invalid.
func ParseReferralCode(rawUrl string) string {
	u, err := url.Parse(rawUrl)
	if err != nil {
		return ""
	}
	code := strings.ToLower(u.Query().Get("ref"))
	if !IsValidReferralCode(code) {
		return ""
	}
	return code
}
