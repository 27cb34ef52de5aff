package mfa

// Enrollment is what a user scans into an authenticator app.
type Enrollment struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
	QRCode     string `json:"qrCode"`
}

// EnableRequest confirms an enrollment with a code from the app.
type EnableRequest struct {
	Secret string `json:"secret" validate:"required"`
	Code   string `json:"code" validate:"required,len=6,numeric"`
}

// VerifyRequest checks a code against the stored secret.
type VerifyRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// StoredSecret is the profile's MFA state as read from the database.
type StoredSecret struct {
	Ciphertext string
	Enabled    bool
}
