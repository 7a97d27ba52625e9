package models

type HealthResponse struct {
	Status string `json:"status"`
}

type AuthResponse struct {
	UserID       string     `json:"user_id"`
	Email        string     `json:"email"`
	AccessToken  string     `json:"access_token,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresIn    int        `json:"expires_in,omitempty"`
	Profile      *UserState `json:"profile,omitempty"`
}

type AccountResponse struct {
	UserID  string     `json:"user_id"`
	Profile *UserState `json:"profile"`
}

type AdRewardResponse struct {
	Granted bool       `json:"granted"`
	Profile *UserState `json:"profile"`
}

type ElevateResponse struct {
	Elevated bool `json:"elevated"`
}

// UpgradeRequiredResponse is returned when the ledger refuses an action.
// Reason is "credits" or "pro".
type UpgradeRequiredResponse struct {
	Error   string  `json:"error"`
	Message string  `json:"message"`
	Feature Feature `json:"feature"`
	Reason  string  `json:"reason"`
	Credits int     `json:"credits"`
}

type ExportResponse struct {
	StoragePath string `json:"storage_path"`
	PublicURL   string `json:"public_url"`
	MimeType    string `json:"mime_type"`
}

type NotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
}
