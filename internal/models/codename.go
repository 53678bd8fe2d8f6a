package models

// Placeholder text applied to freshly created codenames until an admin fills
// in real copy.
const CodenamePlaceholderText = "Summary placeholder text."

// CodenameModel is a top-level content entry. Deleting a codename cascades to
// its references and images.
type CodenameModel struct {
	Base
	Name        string `json:"name" gorm:"uniqueIndex;size:255;not null"`
	Slug        string `json:"slug" gorm:"uniqueIndex;size:255;not null"`
	Summary     string `json:"summary"     gorm:"type:text"`
	Description string `json:"description" gorm:"type:text"`

	References []ReferenceModel `json:"references,omitempty" gorm:"foreignKey:CodenameID;constraint:OnDelete:CASCADE"`
	Images     []ImageModel     `json:"images,omitempty"     gorm:"foreignKey:CodenameID;constraint:OnDelete:CASCADE"`
}

func (CodenameModel) TableName() string { return "codenames" }

// ReferenceModel is an external link annotated by an admin, belonging to
// exactly one codename.
type ReferenceModel struct {
	Base
	URL        string `json:"url"        gorm:"size:255;not null"`
	Annotation string `json:"annotation" gorm:"size:255"`
	CodenameID string `json:"-"          gorm:"type:char(36);index;not null"`
}

func (ReferenceModel) TableName() string { return "references" }
