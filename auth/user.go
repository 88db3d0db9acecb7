package auth

import "github.com/tidwall/gjson"

// User is the identity the backend resolves a token to. It never carries a password.
type User struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Company string `json:"company,omitempty"`
	Website string `json:"website,omitempty"`
}

// Profile is what a new account is registered with.
type Profile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Company  string `json:"company,omitempty"`
	Website  string `json:"website,omitempty"`
}

// UserUpdate is a partial identity update. Empty fields are left alone.
type UserUpdate struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Company string `json:"company,omitempty"`
	Website string `json:"website,omitempty"`
}

// Apply merges the update into u, last write wins per field.
func (up UserUpdate) Apply(u User) User {
	if up.Name != "" {
		u.Name = up.Name
	}
	if up.Email != "" {
		u.Email = up.Email
	}
	if up.Company != "" {
		u.Company = up.Company
	}
	if up.Website != "" {
		u.Website = up.Website
	}
	return u
}

// Response is returned by a successful login or registration.
type Response struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

func parseUser(res gjson.Result) User {
	return User{
		ID:      res.Get("id").String(),
		Name:    res.Get("name").Str,
		Email:   res.Get("email").Str,
		Company: res.Get("company").Str,
		Website: res.Get("website").Str,
	}
}
