package reconcile

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenPair is what fragment delivery can carry. Expiry may be absent and is
// then recovered from expires_in or the access token's own exp claim.
type tokenPair struct {
	access    string
	refresh   string
	expiresAt int64
}

// parseFragmentTokens extracts an access/refresh token pair from a URL
// fragment. Fragment encoding is not consistent across identity-flow
// providers, so a strict query-string parse is tried first and a manual
// split-based parse second.
func parseFragmentTokens(fragment string, now time.Time) (tokenPair, bool) {
	fragment = strings.TrimPrefix(fragment, "#")
	if fragment == "" {
		return tokenPair{}, false
	}

	if values, err := url.ParseQuery(fragment); err == nil {
		if pair, ok := pairFromValues(values, now); ok {
			return pair, true
		}
	}
	return pairFromManualSplit(fragment, now)
}

func pairFromValues(values url.Values, now time.Time) (tokenPair, bool) {
	pair := tokenPair{
		access:  values.Get("access_token"),
		refresh: values.Get("refresh_token"),
	}
	if pair.access == "" || pair.refresh == "" {
		return tokenPair{}, false
	}
	pair.expiresAt = resolveExpiry(values.Get("expires_at"), values.Get("expires_in"), pair.access, now)
	return pair, true
}

func pairFromManualSplit(fragment string, now time.Time) (tokenPair, bool) {
	raw := make(map[string]string)
	for _, part := range strings.Split(fragment, "&") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			continue
		}
		value := kv[1]
		if unescaped, err := url.QueryUnescape(value); err == nil {
			value = unescaped
		}
		raw[kv[0]] = value
	}

	pair := tokenPair{access: raw["access_token"], refresh: raw["refresh_token"]}
	if pair.access == "" || pair.refresh == "" {
		return tokenPair{}, false
	}
	pair.expiresAt = resolveExpiry(raw["expires_at"], raw["expires_in"], pair.access, now)
	return pair, true
}

// resolveExpiry picks the first usable expiry source: an absolute
// expires_at, a relative expires_in, then the unverified exp claim of the
// access token. Claim extraction does no signature verification; validity is
// the identity service's concern.
func resolveExpiry(expiresAt, expiresIn, accessToken string, now time.Time) int64 {
	if expiresAt != "" {
		if at, err := strconv.ParseInt(expiresAt, 10, 64); err == nil && at > 0 {
			return at
		}
	}
	if expiresIn != "" {
		if in, err := strconv.ParseInt(expiresIn, 10, 64); err == nil && in > 0 {
			return now.Unix() + in
		}
	}
	return expiryFromClaims(accessToken)
}

func expiryFromClaims(accessToken string) int64 {
	token, _, err := jwt.NewParser().ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return 0
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	return exp.Unix()
}
