package models

// ContentModel is a named Markdown slot rendered into a hardcoded place in
// the frontend. Slots are seeded by the CLI and can only be replaced, never
// created or deleted through the API.
type ContentModel struct {
	Base
	Name     string `json:"name"     gorm:"uniqueIndex;size:255;not null"`
	Markdown string `json:"markdown" gorm:"type:longtext"`
}

func (ContentModel) TableName() string { return "contents" }
