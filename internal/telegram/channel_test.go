package telegram

import (
	"errors"
	"net"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"pumpfun-sentinel/internal/dispatch"
)

func TestClassify_RateLimit(t *testing.T) {
	err := classify(&tgbotapi.Error{
		Code:               429,
		Message:            "Too Many Requests: retry after 35",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 35},
	})

	var rl *dispatch.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("classify returned %T, want *dispatch.RateLimitError", err)
	}
	if rl.RetryAfter != 35*time.Second {
		t.Errorf("RetryAfter = %s, want 35s", rl.RetryAfter)
	}
}

func TestClassify_RetryAfterWithoutCode(t *testing.T) {
	// Some Bot API responses carry retry_after on a non-429 code.
	err := classify(&tgbotapi.Error{
		Code:               400,
		Message:            "flood control",
		ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 5},
	})

	var rl *dispatch.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("classify returned %T, want *dispatch.RateLimitError", err)
	}
}

func TestClassify_Blocked(t *testing.T) {
	err := classify(&tgbotapi.Error{
		Code:    403,
		Message: "Forbidden: bot was blocked by the user",
	})

	var perm *dispatch.PermanentError
	if !errors.As(err, &perm) {
		t.Fatalf("classify returned %T, want *dispatch.PermanentError", err)
	}
}

func TestClassify_ChatNotFound(t *testing.T) {
	err := classify(&tgbotapi.Error{
		Code:    400,
		Message: "Bad Request: chat not found",
	})

	var perm *dispatch.PermanentError
	if !errors.As(err, &perm) {
		t.Fatalf("classify returned %T, want *dispatch.PermanentError", err)
	}
}

func TestClassify_Transient(t *testing.T) {
	cases := []error{
		&tgbotapi.Error{Code: 500, Message: "Internal Server Error"},
		&tgbotapi.Error{Code: 400, Message: "Bad Request: message is too long"},
		&net.OpError{Op: "dial", Err: errors.New("connection refused")},
	}

	for _, in := range cases {
		err := classify(in)
		var tr *dispatch.TransientError
		if !errors.As(err, &tr) {
			t.Errorf("classify(%v) returned %T, want *dispatch.TransientError", in, err)
		}
	}
}
