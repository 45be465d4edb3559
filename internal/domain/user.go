package domain

// UserStatus is the persisted presence status on the user record.
type UserStatus string

const (
	StatusOnline  UserStatus = "Online"
	StatusOffline UserStatus = "Offline"
)

// PublicUser is the profile shape returned to clients. It never carries the
// password hash or the stored refresh token.
type PublicUser struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Fullname  string     `json:"fullname"`
	Email     string     `json:"email"`
	AvatarURL string     `json:"avatar_url"`
	Status    UserStatus `json:"status"`
}
