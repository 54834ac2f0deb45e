package httptransport

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type errorResponse struct {
	Error errorInfo `json:"error"`
}

type resultResponse struct {
	Result any `json:"result"`
}
