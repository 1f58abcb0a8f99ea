package models

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a stored account. Password holds the encoded hash, never plaintext.
type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"-"`
	Phone    string `json:"phone"`
	// Role is stored at signup but login derives the effective role from
	// configured admin emails instead.
	Role string `json:"-"`
}

// UserSummary is the public listing shape of an account.
type UserSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}
