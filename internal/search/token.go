package search

import "strconv"

const (
	// PageSize is the number of results per page.
	PageSize = 50
	// TokenBase is the radix page numbers are written in.
	TokenBase = 36
)

// DecodePageToken returns the zero-based page number a token encodes. Empty,
// malformed, negative and out-of-range tokens all mean page 0.
//
// The whole token must be base-36 digits. A lenient prefix parse would read
// "1!" or "1.5" as page 1; here both are malformed and give page 0. Tokens
// this package issues are always well formed, so only hand-edited offsets
// see the difference.
func DecodePageToken(token string) int {
	if token == "" {
		return 0
	}
	page, err := strconv.ParseInt(token, TokenBase, 32)
	if err != nil || page < 0 {
		return 0
	}
	return int(page)
}

// EncodePageToken writes page in TokenBase.
func EncodePageToken(page int) string {
	return strconv.FormatInt(int64(page), TokenBase)
}
