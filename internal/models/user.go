package models

// DefaultUserImageURL is the avatar assigned to users until their OAuth
// profile image is known.
const DefaultUserImageURL = "/static/img/default-user.png"

// OAuthProviders lists the identity providers accepted for federated login.
var OAuthProviders = []string{"twitter"}

// UserModel represents a registered user, federated via an OAuth identity.
type UserModel struct {
	Base
	Username      string `json:"username"  gorm:"uniqueIndex;size:255;not null"`
	ImageURL      string `json:"image_url" gorm:"type:text"`
	IsAdmin       bool   `json:"is_admin"  gorm:"not null;default:false"`
	OAuthProvider string `json:"-"         gorm:"column:oauth_provider;size:32;uniqueIndex:uk_identity"`
	OAuthUserID   string `json:"-"         gorm:"column:oauth_user_id;size:255;uniqueIndex:uk_identity"`
	OAuthToken    string `json:"-"         gorm:"column:oauth_token;size:255"`
	OAuthSecret   string `json:"-"         gorm:"column:oauth_secret;size:255"`
}

func (UserModel) TableName() string { return "users" }
