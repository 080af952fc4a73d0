package tracking

import "errors"

var (
	ErrInvalidURL        = errors.New("invalid tracking url")
	ErrTransport         = errors.New("tracking transport failure")
	ErrMalformedResponse = errors.New("malformed tracking response")
)
