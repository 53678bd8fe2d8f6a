package models

import "time"

// ImageModel is a user-contributed image for a codename. Files are
// content-addressed by a hash of the decoded pixel data, so Path and
// ThumbPath may be shared between rows. Votes is denormalized and must stay
// equal to the number of image_votes rows for the image.
type ImageModel struct {
	Base
	Path          string `json:"-"        gorm:"size:255;not null"`
	ThumbPath     string `json:"-"        gorm:"size:255;not null"`
	Votes         int    `json:"votes"    gorm:"not null;default:0"`
	Approved      bool   `json:"approved" gorm:"not null;default:false"`
	CodenameID    string `json:"-"        gorm:"type:char(36);index;not null"`
	ContributorID string `json:"-"        gorm:"type:char(36);index"`

	Contributor *UserModel `json:"contributor,omitempty" gorm:"foreignKey:ContributorID"`
}

func (ImageModel) TableName() string { return "images" }

// VisibleTo reports whether the viewer may see this image: approved images
// are public, unapproved ones are shown only to their contributor and admins.
func (m *ImageModel) VisibleTo(viewer *UserModel) bool {
	if m.Approved {
		return true
	}
	if viewer == nil {
		return false
	}
	return viewer.IsAdmin || viewer.ID == m.ContributorID
}

// ImageVoteModel records one user's vote on one image. The composite primary
// key is what makes re-voting impossible at the database level.
type ImageVoteModel struct {
	ImageID   string    `json:"image_id" gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"  gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time `json:"-"`
}

func (ImageVoteModel) TableName() string { return "image_votes" }
