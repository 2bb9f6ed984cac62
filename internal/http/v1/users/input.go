package users

// Presence of each field is checked by the account service so that a missing
// field is reported with a single, stable message. Unknown body fields are
// ignored. Length limits are the provider's business; the body as a whole is
// capped by the request size middleware.

// RegisterInput for POST /api/register
type RegisterInput struct {
	Body struct {
		_        struct{} `json:"-" additionalProperties:"true"`
		Email    string   `json:"email"    required:"false" doc:"Email address" example:"ada@example.com"`
		Password string   `json:"password" required:"false" doc:"Password"      example:"correct-horse"`
		Name     string   `json:"name"     required:"false" doc:"Display name"  example:"Ada"`
	}
}

// LoginInput for POST /api/login
type LoginInput struct {
	Body struct {
		_        struct{} `json:"-" additionalProperties:"true"`
		Email    string   `json:"email"    required:"false" doc:"Email address" example:"ada@example.com"`
		Password string   `json:"password" required:"false" doc:"Password"      example:"correct-horse"`
	}
}

// ListInput for GET /api/users
type ListInput struct {
	Name string `query:"name" doc:"Exact, case-sensitive name to match" example:"Ada"`
}

// ForgotPasswordInput for POST /api/forgot-password
type ForgotPasswordInput struct {
	Body struct {
		_     struct{} `json:"-" additionalProperties:"true"`
		Email string   `json:"email" required:"false" doc:"Email address of the account" example:"ada@example.com"`
	}
}
