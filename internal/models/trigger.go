package models

// TriggerRequest is the body every stage's /run endpoint accepts.
type TriggerRequest struct {
	InputFile string `json:"inputFile"` // key of the work item in the receiving stage's bucket
}

// Response is the JSON body returned by a trigger endpoint. Exactly one of
// Message or Error is set.
type Response struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MessageResponse returns a successful response body.
func MessageResponse(msg string) Response {
	return Response{Message: msg}
}

// ErrorResponse returns a failed response body.
func ErrorResponse(msg string) Response {
	return Response{Error: msg}
}
