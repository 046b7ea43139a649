package domain

import "time"

// User es la cuenta autenticable. PasswordHash vacío indica una cuenta solo
// sin contraseña (magic link).
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}

// Identity es la identidad mínima que se expone tras validar una credencial.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
