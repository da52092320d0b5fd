package api

import "time"

// Role is the server-assigned role of the authenticated user. The zero
// value means the role is not yet known (the who-am-I fetch has not
// resolved); role-gated checks treat it as insufficient.
type Role string

const (
	RoleUnknown Role = ""
	RoleAdmin   Role = "ADMIN"
	RoleUser    Role = "USER"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries either a bearer token (password-only accounts) or
// a second-factor challenge, never both.
type LoginResponse struct {
	AccessToken string `json:"access_token,omitempty"`
	Challenge   string `json:"challenge,omitempty"`
}

type TwoFactorVerifyRequest struct {
	Challenge string `json:"challenge"`
	Token     string `json:"token"`
}

type TwoFactorVerifyResponse struct {
	AccessToken string `json:"access_token"`
}

type TwoFactorSetupResponse struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauth_url"`
}

// Me is the who-am-I response that establishes role and identity.
type Me struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Photo struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	TakenAt    time.Time `json:"taken_at"`
	LocationID int64     `json:"location_id,omitempty"`
}

type Order struct {
	ID         int64     `json:"id"`
	CustomerID int64     `json:"customer_id"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

type Share struct {
	ID        int64      `json:"id"`
	Token     string     `json:"token"`
	PhotoIDs  []int64    `json:"photo_ids"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

type Customer struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Location struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// UserUpdate is a partial update; nil fields are left unchanged.
type UserUpdate struct {
	Email *string `json:"email,omitempty"`
	Role  *Role   `json:"role,omitempty"`
}

type ExportJob struct {
	ID        int64     `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type ExportRequest struct {
	PhotoIDs []int64 `json:"photo_ids"`
}

// PublicShare is the unauthenticated view of a share.
type PublicShare struct {
	Token  string  `json:"token"`
	Photos []Photo `json:"photos"`
}
