package codename

import (
	"errors"
	"strings"
	"time"

	"github.com/codename/server/internal/database"
	"github.com/codename/server/internal/models"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB

	// reserved holds top-level route segments a slug may not shadow,
	// snapshotted from the router at startup.
	reserved map[string]struct{}
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, reserved: map[string]struct{}{}}
}

// SetReservedSlugs installs the set of reserved top-level route segments.
func (s *Service) SetReservedSlugs(segments []string) {
	reserved := make(map[string]struct{}, len(segments))
	for _, seg := range segments {
		seg = strings.TrimSpace(strings.Trim(seg, "/"))
		if seg != "" {
			reserved[seg] = struct{}{}
		}
	}
	s.reserved = reserved
}

// List returns all codenames in alphabetical order, with images preloaded
// for thumbnail selection.
func (s *Service) List() ([]models.CodenameModel, error) {
	var items []models.CodenameModel
	err := s.db.Preload("Images").Order("name ASC").Find(&items).Error
	return items, err
}

// Search performs a case-insensitive substring match across name, summary and
// description. Literal % and _ in the query are escaped with ! rather than
// backslash so the ESCAPE clause reads the same under MySQL and SQLite.
func (s *Service) Search(query string) ([]models.CodenameModel, error) {
	escaped := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`).Replace(query)
	pattern := "%" + escaped + "%"

	var items []models.CodenameModel
	err := s.db.Preload("Images").
		Where("LOWER(name) LIKE LOWER(?) ESCAPE '!' OR LOWER(summary) LIKE LOWER(?) ESCAPE '!' OR LOWER(description) LIKE LOWER(?) ESCAPE '!'",
			pattern, pattern, pattern).
		Order("name ASC").
		Find(&items).Error
	return items, err
}

// GetBySlug loads a codename with references and images. Returns nil when no
// codename exists for the slug.
func (s *Service) GetBySlug(slug string) (*models.CodenameModel, error) {
	var cn models.CodenameModel
	err := s.db.Preload("References").Preload("Images").
		First(&cn, "slug = ?", slug).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cn, nil
}

// Create derives the slug from the name and persists a new codename with
// placeholder copy. A slug that shadows a reserved route or collides with an
// existing codename fails with errSlugReserved / a duplicate-entry error.
func (s *Service) Create(name string) (*models.CodenameModel, error) {
	slug := Slugify(name)
	if _, ok := s.reserved[slug]; ok {
		return nil, errSlugReserved
	}

	cn := models.CodenameModel{
		Name:        name,
		Slug:        slug,
		Summary:     models.CodenamePlaceholderText,
		Description: models.CodenamePlaceholderText,
	}
	if err := s.db.Create(&cn).Error; err != nil {
		return nil, err
	}
	return &cn, nil
}

// Update replaces summary and description.
func (s *Service) Update(cn *models.CodenameModel, summary, description string) error {
	return s.db.Model(cn).Updates(map[string]interface{}{
		"summary":     summary,
		"description": description,
	}).Error
}

// Delete removes a codename; references and images cascade at the database
// level. Content-addressed image files stay on disk since other rows may
// share them.
func (s *Service) Delete(cn *models.CodenameModel) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var imageIDs []string
		if err := tx.Model(&models.ImageModel{}).
			Where("codename_id = ?", cn.ID).
			Pluck("id", &imageIDs).Error; err != nil {
			return err
		}
		if len(imageIDs) > 0 {
			if err := tx.Where("image_id IN ?", imageIDs).
				Delete(&models.ImageVoteModel{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("codename_id = ?", cn.ID).Delete(&models.ImageModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("codename_id = ?", cn.ID).Delete(&models.ReferenceModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(cn).Error
	})
}

// AddReference attaches a reference and touches the codename's updated time.
func (s *Service) AddReference(cn *models.CodenameModel, url, annotation string) (*models.ReferenceModel, error) {
	ref := models.ReferenceModel{URL: url, Annotation: annotation, CodenameID: cn.ID}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&ref).Error; err != nil {
			return err
		}
		return s.touch(tx, cn)
	})
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// GetReference loads a reference and verifies it belongs to the codename.
// Returns nil when absent or owned by another codename.
func (s *Service) GetReference(cn *models.CodenameModel, referenceID string) (*models.ReferenceModel, error) {
	var ref models.ReferenceModel
	err := s.db.First(&ref, "id = ?", referenceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if ref.CodenameID != cn.ID {
		return nil, nil
	}
	return &ref, nil
}

// UpdateReference replaces url and annotation.
func (s *Service) UpdateReference(cn *models.CodenameModel, ref *models.ReferenceModel, url, annotation string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(ref).Updates(map[string]interface{}{
			"url":        url,
			"annotation": annotation,
		}).Error; err != nil {
			return err
		}
		return s.touch(tx, cn)
	})
}

// DeleteReference removes a reference.
func (s *Service) DeleteReference(cn *models.CodenameModel, ref *models.ReferenceModel) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(ref).Error; err != nil {
			return err
		}
		return s.touch(tx, cn)
	})
}

// touch bumps the codename's updated time by key. The loaded struct is not
// handed to gorm here: its preloaded associations would be auto-saved along
// with the update, resurrecting rows deleted earlier in the transaction.
func (s *Service) touch(tx *gorm.DB, cn *models.CodenameModel) error {
	return tx.Model(&models.CodenameModel{}).
		Where("id = ?", cn.ID).
		UpdateColumn("updated_at", time.Now()).Error
}

// IsDuplicate reports whether err came from the unique name/slug constraints.
func IsDuplicate(err error) bool {
	return database.IsDuplicateEntry(err)
}
