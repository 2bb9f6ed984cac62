package users

// RegisterOutput for POST /api/register (201 Created)
type RegisterOutput struct {
	Body struct {
		Message string         `json:"message" example:"Registration successful"`
		User    RegisteredUser `json:"user"`
	}
}

// LoginOutput for POST /api/login
type LoginOutput struct {
	Body struct {
		Message string      `json:"message" example:"Login successful"`
		User    SessionUser `json:"user"`
	}
}

// ListOutput for GET /api/users
type ListOutput struct {
	Body []User
}

// ForgotPasswordOutput for POST /api/forgot-password
type ForgotPasswordOutput struct {
	Body struct {
		Message   string `json:"message"   example:"Password reset email sent successfully"`
		ResetLink string `json:"resetLink" doc:"Out-of-band password reset link"`
	}
}

// MeOutput for GET /api/me
type MeOutput struct {
	Body User
}

// TokenOutput for POST /api/token
type TokenOutput struct {
	Body struct {
		Message     string `json:"message"     example:"Custom token issued"`
		CustomToken string `json:"customToken" doc:"Firebase custom token carrying the role claim"`
	}
}
