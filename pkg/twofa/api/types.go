package api

import (
	"github.com/google/uuid"

	"github.com/drfintrack/fintrack-auth/pkg/factor"
	"github.com/drfintrack/fintrack-auth/pkg/tokengenerator"
)

// Request bodies

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginVerifyRequest struct {
	ChallengeID string `json:"challenge_id"`
	Code        string `json:"code"`
}

type EnrollRequest struct {
	Password string `json:"password"`
}

type ConfirmRequest struct {
	FactorID string `json:"factor_id"`
	Code     string `json:"code"`
}

type DisableRequest struct {
	Password string `json:"password"`
	Code     string `json:"code"`
}

// Response bodies

type LoginResponse struct {
	RequiresTwoFA bool                                 `json:"requires_2fa"`
	ChallengeID   uuid.UUID                            `json:"challenge_id,omitempty"`
	Tokens        map[string]tokengenerator.TokenValue `json:"tokens,omitempty"`
}

type EnrollResponse struct {
	FactorID    uuid.UUID `json:"factor_id"`
	Secret      string    `json:"secret"`
	QRPayload   string    `json:"qr_payload"`
	BackupCodes []string  `json:"backup_codes"`
}

type FactorsResponse struct {
	Factors []factor.FactorSummary `json:"factors"`
}

type SuccessResponse struct {
	Result string `json:"result"`
}

type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}
