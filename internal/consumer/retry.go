package consumer

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"
)

var permanentCodes = map[string]bool{
	"NoSuchKey":          true,
	"NoSuchBucket":       true,
	"AccessDenied":       true,
	"InvalidObjectState": true,
	"InvalidRange":       true,
}

// IsRetryable reports whether a failed fetch may succeed on a later attempt.
// Unknown errors are assumed transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return !permanentCodes[apiErr.ErrorCode()]
	}
	return true
}
