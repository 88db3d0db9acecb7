package session

import "github.com/contentai-pro/dashboard-core/auth"

// Snapshot is a copy of the session state. It is safe to keep and compare.
type Snapshot struct {
	UserID      string
	DisplayName string
	Email       string
	Company     string
	Website     string
	// Token is the opaque bearer token. Empty when unauthenticated.
	Token string
	// IsAuthenticated is true iff there is both a token and a resolved identity.
	IsAuthenticated bool
	// Loading is true from construction until the first Restore finishes, then never again.
	Loading bool
}

// User returns the identity carried by the snapshot.
func (s Snapshot) User() auth.User {
	return auth.User{
		ID:      s.UserID,
		Name:    s.DisplayName,
		Email:   s.Email,
		Company: s.Company,
		Website: s.Website,
	}
}

// SameIdentity returns true if both snapshots are authenticated as the same user with
// the same token.
func (s Snapshot) SameIdentity(other Snapshot) bool {
	return s.IsAuthenticated == other.IsAuthenticated && s.UserID == other.UserID && s.Token == other.Token
}

func authenticated(user auth.User, token string, loading bool) Snapshot {
	return Snapshot{
		UserID:          user.ID,
		DisplayName:     user.Name,
		Email:           user.Email,
		Company:         user.Company,
		Website:         user.Website,
		Token:           token,
		IsAuthenticated: token != "" && user.ID != "",
		Loading:         loading,
	}
}

func unauthenticated(loading bool) Snapshot {
	return Snapshot{Loading: loading}
}
