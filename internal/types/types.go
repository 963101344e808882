package types

type PredictRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type PredictResponse struct {
	Reply string `json:"reply"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
