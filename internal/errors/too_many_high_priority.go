package errors

import "net/http"

var ErrTooManyHighPriority = &Exception{
	Message:    "only one task can have high priority per date",
	StatusCode: http.StatusBadRequest,
}
