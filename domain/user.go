package domain

// User is the account record persisted by the user repository.
// PasswordHash carries the encoded argon2id string, never a plain password.
type User struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	PasswordHash string   `json:"password_hash"`
	Username     string   `json:"username,omitempty"`
	ProfileImage string   `json:"profile_image,omitempty"`
	Bio          string   `json:"bio,omitempty"`
	Roles        []string `json:"roles"`
	CreatedAt    int64    `json:"created_at"`
}

// PresenceRecord is a user's online flag and last-seen timestamp.
// A user never seen defaults to offline with LastSeen unset.
type PresenceRecord struct {
	UserID   string `json:"user_id"`
	Online   bool   `json:"online"`
	LastSeen int64  `json:"last_seen,omitempty"`
}
