package contracts

import "time"

type PlaceUserRequest struct {
	UserID    string `json:"user_id"`
	SponsorID string `json:"sponsor_id"`
	Leg       string `json:"leg"`
}

type RegisterInvestmentRequest struct {
	UserID         string    `json:"user_id"`
	PackageID      string    `json:"package_id"`
	InvestedAmount float64   `json:"invested_amount"`
	DepositAmount  float64   `json:"deposit_amount"`
	Type           string    `json:"type"`
	ExpiresOn      time.Time `json:"expires_on"`
}

type RunCalculationsRequest struct {
	Date            string `json:"date,omitempty"`
	IncludeROI      *bool  `json:"include_roi,omitempty"`
	IncludeBinary   *bool  `json:"include_binary,omitempty"`
	IncludeReferral *bool  `json:"include_referral,omitempty"`
	Force           bool   `json:"force,omitempty"`
}

type WithdrawalRequest struct {
	WalletType string  `json:"wallet_type"`
	Amount     float64 `json:"amount"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type ErrorPayload struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}
