package types

// SuccessEnvelope wraps every 2xx JSON response body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error shape; Details carries structured context
// only when the error code allows it.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
