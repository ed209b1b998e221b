package errors

import "net/http"

var ErrHighPriorityConflict = &Exception{
	Message:    "a high-priority task already exists for this date",
	StatusCode: http.StatusConflict,
}
