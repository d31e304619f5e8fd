package errors

// ErrorCode is the stable, machine-readable identifier of an error. Codes are
// what the HTTP surface and the logs report; messages may change.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Error is an application error carrying a code and optional context data
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory creates coded errors
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
