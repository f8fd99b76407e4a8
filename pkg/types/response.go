package types

// SuccessEnvelope wraps every successful API payload under a data key so
// clients can distinguish payloads from error envelopes by shape alone.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the public error shape. Details is populated only for codes
// whose metadata allows it, such as OUT_OF_STOCK carrying the remaining count.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
