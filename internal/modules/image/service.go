package image

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codename/server/internal/models"
	"github.com/codename/server/internal/pkg/imaging"
	"github.com/codename/server/internal/pkg/pagination"
	"github.com/codename/server/internal/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db  *gorm.DB
	dir string
}

// NewService stores content-addressed image files under dir.
func NewService(db *gorm.DB, dir string) *Service {
	return &Service{db: db, dir: dir}
}

// Ingest validates raw upload bytes, writes the deduplicated full image and
// thumbnail, and records an unapproved image attributed to the contributor.
// Nothing is written when validation fails.
func (s *Service) Ingest(cn *models.CodenameModel, contributor *models.UserModel, data []byte, contentType string) (*models.ImageModel, error) {
	processed, err := imaging.Process(data, contentType)
	if err != nil {
		return nil, err
	}

	path, err := s.write(processed.Hash, processed.Data)
	if err != nil {
		return nil, err
	}
	thumbPath, err := s.write(processed.ThumbHash, processed.ThumbData)
	if err != nil {
		return nil, err
	}

	img := models.ImageModel{
		Path:          path,
		ThumbPath:     thumbPath,
		CodenameID:    cn.ID,
		ContributorID: contributor.ID,
	}
	if err := s.db.Create(&img).Error; err != nil {
		return nil, err
	}
	return &img, nil
}

// GetForCodename loads an image and verifies it belongs to the codename.
// Returns nil when absent or owned by another codename.
func (s *Service) GetForCodename(cn *models.CodenameModel, imageID string) (*models.ImageModel, error) {
	var img models.ImageModel
	err := s.db.First(&img, "id = ?", imageID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if img.CodenameID != cn.ID {
		return nil, nil
	}
	return &img, nil
}

// Vote adds the user to the image's voter set. Voting twice is a no-op; the
// denormalized counter moves in the same transaction as the membership row.
func (s *Service) Vote(imageID, userID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.ImageVoteModel{ImageID: imageID, UserID: userID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&models.ImageModel{}).Where("id = ?", imageID).
			UpdateColumn("votes", gorm.Expr("votes + 1")).Error
	})
}

// Unvote removes the user from the voter set; removing a vote not held is a
// no-op.
func (s *Service) Unvote(imageID, userID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("image_id = ? AND user_id = ?", imageID, userID).
			Delete(&models.ImageVoteModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		return tx.Model(&models.ImageModel{}).Where("id = ?", imageID).
			UpdateColumn("votes", gorm.Expr("votes - 1")).Error
	})
}

// VoteCount reads the denormalized counter.
func (s *Service) VoteCount(imageID string) (int, error) {
	var img models.ImageModel
	if err := s.db.Select("votes").First(&img, "id = ?", imageID).Error; err != nil {
		return 0, err
	}
	return img.Votes, nil
}

// Approve flips the moderation gate, making the image publicly visible.
func (s *Service) Approve(imageID string) error {
	return s.db.Model(&models.ImageModel{}).Where("id = ?", imageID).
		UpdateColumn("approved", true).Error
}

// Delete removes the row and its votes. The content-addressed files stay on
// disk since other rows may share them.
func (s *Service) Delete(img *models.ImageModel) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("image_id = ?", img.ID).Delete(&models.ImageVoteModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(img).Error
	})
}

// Queue lists unapproved images, oldest first, for the admin moderation view.
func (s *Service) Queue(q pagination.Query) ([]models.ImageModel, response.Pagination, error) {
	tx := s.db.Model(&models.ImageModel{}).
		Where("approved = ?", false).
		Preload("Contributor").
		Order("created_at ASC")
	var items []models.ImageModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// FilePath resolves a stored relative path to an absolute file path.
func (s *Service) FilePath(rel string) string {
	return filepath.Join(s.dir, rel)
}

// write stores data under its content hash, skipping the write when a file
// for that hash already exists.
func (s *Service) write(hash string, data []byte) (string, error) {
	rel := hash + ".png"
	abs := filepath.Join(s.dir, rel)

	if _, err := os.Stat(abs); err == nil {
		return rel, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return "", fmt.Errorf("write image file: %w", err)
	}
	return rel, nil
}
