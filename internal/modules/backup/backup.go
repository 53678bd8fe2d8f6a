package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	backupRootDir      = "codename"
	backupDBDir        = backupRootDir + "/db"
	backupManifestFile = backupRootDir + "/manifest.json"
	backupFormat       = "codename-jsonl"
	backupVersion      = 1
)

// backupTableNames orders tables so a restore can insert parents before
// children.
var backupTableNames = []string{
	"users",
	"codenames",
	"references",
	"images",
	"image_votes",
	"contents",
}

type manifest struct {
	Format    string    `json:"format"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Tables    []string  `json:"tables"`
}

// Service dumps the whole database to a zip of JSON lines and ships it to
// object storage.
type Service struct {
	db       *gorm.DB
	uploader *S3Store
}

func NewService(db *gorm.DB, uploader *S3Store) *Service {
	return &Service{db: db, uploader: uploader}
}

// Dump serializes every table into an in-memory zip archive.
func (s *Service) Dump() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, table := range backupTableNames {
		var rows []map[string]interface{}
		if err := s.db.Table(table).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("dump table %s: %w", table, err)
		}

		w, err := zw.Create(path.Join(backupDBDir, table+".jsonl"))
		if err != nil {
			return nil, err
		}
		enc := json.NewEncoder(w)
		for _, row := range rows {
			if err := enc.Encode(row); err != nil {
				return nil, fmt.Errorf("encode row in %s: %w", table, err)
			}
		}
	}

	mw, err := zw.Create(backupManifestFile)
	if err != nil {
		return nil, err
	}
	if err := json.NewEncoder(mw).Encode(manifest{
		Format:    backupFormat,
		Version:   backupVersion,
		CreatedAt: time.Now().UTC(),
		Tables:    backupTableNames,
	}); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Run dumps the database and uploads the archive, returning the object key.
func (s *Service) Run(ctx context.Context) (string, error) {
	if s.uploader == nil {
		return "", fmt.Errorf("s3 is not configured")
	}

	payload, err := s.Dump()
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("codename-backup-%s.zip", time.Now().UTC().Format("20060102-150405"))
	if err := s.uploader.Upload(ctx, key, payload); err != nil {
		return "", err
	}
	return key, nil
}

// Restore downloads an archive by key and reloads every table it contains,
// replacing current contents.
func (s *Service) Restore(ctx context.Context, key string) error {
	if s.uploader == nil {
		return fmt.Errorf("s3 is not configured")
	}

	payload, err := s.uploader.Download(ctx, key)
	if err != nil {
		return err
	}
	return s.load(payload)
}

func (s *Service) load(payload []byte) error {
	zr, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return fmt.Errorf("open backup archive: %w", err)
	}

	entries := map[string]*zip.File{}
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, backupDBDir+"/") && strings.HasSuffix(f.Name, ".jsonl") {
			table := strings.TrimSuffix(path.Base(f.Name), ".jsonl")
			entries[table] = f
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		// Children first on delete, parents first on insert.
		for i := len(backupTableNames) - 1; i >= 0; i-- {
			table := backupTableNames[i]
			if err := tx.Exec("DELETE FROM `" + table + "`").Error; err != nil {
				return fmt.Errorf("clear table %s: %w", table, err)
			}
		}
		for _, table := range backupTableNames {
			f, ok := entries[table]
			if !ok {
				continue
			}
			if err := restoreTable(tx, table, f); err != nil {
				return err
			}
		}
		return nil
	})
}

func restoreTable(tx *gorm.DB, table string, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	dec := json.NewDecoder(rc)
	for {
		var row map[string]interface{}
		if err := dec.Decode(&row); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("decode row in %s: %w", table, err)
		}
		if err := tx.Table(table).Create(row).Error; err != nil {
			return fmt.Errorf("restore row in %s: %w", table, err)
		}
	}
	return nil
}
