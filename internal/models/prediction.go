package models

// PredictionRequest is the expense form submitted to /predict. It lives for
// one request only.
type PredictionRequest struct {
	Description string `form:"description"`
	Amount      string `form:"amount"`
}

// Prediction is what the result page shows. Predictions are not stored.
type Prediction struct {
	Description string
	Amount      string
	Category    string
	Username    string
}
