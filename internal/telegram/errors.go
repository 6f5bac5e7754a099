package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	apperrors "github.com/Adithya-Monish-Kumar-K/emote-relay/pkg/errors"
)

// Error is a failed Bot API call.
type Error struct {
	Method      string
	Code        int
	Description string
}

func (e *Error) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

func (e *Error) Unwrap() error {
	return apperrors.ErrRemote
}

// RateLimitError is a 429 answer. It satisfies resilience.Throttled.
type RateLimitError struct {
	Err *Error
	// After is zero when the platform gave no retry_after hint.
	After time.Duration
}

func (e *RateLimitError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Err.Error(), e.After)
	}
	return e.Err.Error()
}

func (e *RateLimitError) RetryAfter() (time.Duration, bool) {
	return e.After, e.After > 0
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

func (e *RateLimitError) Is(target error) bool {
	return target == apperrors.ErrRateLimited
}

// IsRateLimited reports whether err is a Bot API 429.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// classify maps an SDK failure onto Error or RateLimitError. status is the
// HTTP status of the exchange, zero when no response arrived.
func classify(method string, status int, err error) error {
	var sdkErr *tgbotapi.Error
	if !errors.As(err, &sdkErr) {
		if status == 0 {
			// The request URL embeds the bot token; keep it out of the error.
			return apperrors.Newf(apperrors.ErrRemote, 0, "telegram %s: %v", method, unwrapURLError(err))
		}
		return apperrors.Newf(apperrors.ErrRemote, status, "telegram %s: decoding response: %v", method, err)
	}
	code := sdkErr.Code
	if code == 0 {
		// Upload errors come back without error_code.
		code = status
	}
	base := &Error{Method: method, Code: code, Description: sdkErr.Message}
	if code != http.StatusTooManyRequests && sdkErr.RetryAfter == 0 {
		return base
	}
	base.Code = http.StatusTooManyRequests
	rl := &RateLimitError{Err: base}
	if sdkErr.RetryAfter > 0 {
		rl.After = time.Duration(sdkErr.RetryAfter) * time.Second
	}
	return rl
}
