package users

// RegisteredUser is returned by registration.
type RegisteredUser struct {
	ID    string `json:"id"    doc:"User id assigned by the identity provider" example:"kX9b2QfR7sT1"`
	Email string `json:"email" doc:"Email address"                              example:"ada@example.com"`
	Name  string `json:"name"  doc:"Display name"                               example:"Ada"`
	Token string `json:"token" doc:"Firebase ID token for the new session"`
}

// SessionUser is returned by login.
type SessionUser struct {
	ID    string `json:"id"    doc:"User id"                    example:"kX9b2QfR7sT1"`
	Email string `json:"email" doc:"Email address"              example:"ada@example.com"`
	Token string `json:"token" doc:"Firebase ID token for the session"`
}

// User is a profile directory entry.
type User struct {
	ID    string `json:"id"    doc:"User id"       example:"kX9b2QfR7sT1"`
	Name  string `json:"name"  doc:"Display name"  example:"Ada"`
	Email string `json:"email" doc:"Email address" example:"ada@example.com"`
}
