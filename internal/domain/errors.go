package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// TransportError is a network failure, timeout or non-2xx response.
type TransportError struct {
	Source     SourceType
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: GET %s: status %d", e.Source, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s: GET %s: %v", e.Source, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError means the response shape was not recognized at all.
type ParseError struct {
	Source SourceType
	URL    string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: parse %s: %v", e.Source, e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// AggregateError is returned when every adapter selected for a search failed.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return "all sources failed: " + strings.Join(msgs, "; ")
}

func (e *AggregateError) Unwrap() []error { return e.Errors }

// UserInputError rejects a request before any network call.
type UserInputError struct {
	Field  string
	Reason string
}

func NewUserInputError(field, reason string) *UserInputError {
	return &UserInputError{Field: field, Reason: reason}
}

func (e *UserInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func IsTransport(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

func IsParse(err error) bool {
	var e *ParseError
	return errors.As(err, &e)
}

func IsAggregate(err error) bool {
	var e *AggregateError
	return errors.As(err, &e)
}

func IsUserInput(err error) bool {
	var e *UserInputError
	return errors.As(err, &e)
}

// UserMessage maps an error to the single localized message shown to users.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case IsUserInput(err):
		var e *UserInputError
		errors.As(err, &e)
		switch e.Field {
		case "keyword":
			return "请输入搜索关键词"
		case "page", "limit":
			return "页码无效"
		default:
			return "输入无效: " + e.Field
		}
	case errors.Is(err, context.DeadlineExceeded):
		return "请求超时，请稍后重试"
	case IsAggregate(err), IsTransport(err):
		return "网络请求失败，请检查网络后重试"
	case IsParse(err):
		return "数据解析失败，请稍后重试"
	case errors.Is(err, ErrAlreadyCollected):
		return "该条目已在收藏中"
	case errors.Is(err, ErrNotCollected):
		return "该条目未收藏"
	}
	return "加载失败，请稍后重试"
}
