package dto

// Public verdict reasons.
const (
	ReasonMissingToken         = "missing_token"
	ReasonInvalidOrExpired     = "invalid_or_expired_token"
	ReasonCardNotFound         = "card_not_found"
	ReasonTokenVersionMismatch = "token_version_mismatch"
	ReasonCardNotActive        = "card_not_active"
	ReasonIntegrityFailed      = "integrity_check_failed"
	ReasonServerError          = "server_error"
)

// ScanMeta describes the scanner that submitted a token.
type ScanMeta struct {
	UserAgent string
	DeviceID  string
	ClientIP  string
}

// VerifyResponse is the 200 body. It carries no name, passport number,
// date of birth or card number.
type VerifyResponse struct {
	Valid              bool    `json:"valid"`
	IntegrityOK        bool    `json:"integrity_ok"`
	Institution        *string `json:"institution"`
	VisaStatus         string  `json:"visa_status"`
	VisaEndDate        *string `json:"visa_end_date"`
	StudentNationality *string `json:"student_nationality"`
}

type VerifyFailure struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}
