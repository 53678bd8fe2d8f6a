// Command codenamectl administers a codename deployment from the shell:
// schema management, seed content, admin grants, and backups.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/codename/server/internal/config"
	"github.com/codename/server/internal/database"
	"github.com/codename/server/internal/models"
	"github.com/codename/server/internal/modules/backup"
	"github.com/codename/server/internal/modules/codename"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	systemPath string
	localPath  string
)

func main() {
	root := &cobra.Command{
		Use:           "codenamectl",
		Short:         "Administer a codename deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&systemPath, "config", config.DefaultSystemConfigPath, "Path to base YAML config file")
	root.PersistentFlags().StringVar(&localPath, "local-config", config.DefaultLocalConfigPath, "Path to overlay YAML config file")

	root.AddCommand(dbCmd(), userCmd(), backupCmd(), restoreCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func connect() (*gorm.DB, *config.AppConfig, error) {
	cfg, err := config.Load(systemPath, localPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Connect(cfg, false)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the database schema and seed data",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create or migrate all tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := connect()
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			fmt.Println("database initialized")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "drop",
		Short: "Drop all tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := connect()
			if err != nil {
				return err
			}
			if err := database.Drop(db); err != nil {
				return err
			}
			fmt.Println("database dropped")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "fixtures",
		Short: "Install the standard content slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := connect()
			if err != nil {
				return err
			}
			for name, markdown := range contentFixtures {
				if err := upsertContent(db, name, markdown); err != nil {
					return err
				}
				fmt.Printf("content %q installed\n", name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "sample",
		Short: "Seed a couple of example codenames",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, _, err := connect()
			if err != nil {
				return err
			}
			return seedSamples(db)
		},
	})

	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user privileges",
	}
	setAdmin := func(username string, admin bool) error {
		db, _, err := connect()
		if err != nil {
			return err
		}
		res := db.Model(&models.UserModel{}).Where("username = ?", username).Update("is_admin", admin)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("no user named %q", username)
		}
		return nil
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "bless <username>",
		Short: "Grant administrator privileges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setAdmin(args[0], true); err != nil {
				return err
			}
			fmt.Printf("%s is now an administrator\n", args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "demote <username>",
		Short: "Revoke administrator privileges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := setAdmin(args[0], false); err != nil {
				return err
			}
			fmt.Printf("%s is no longer an administrator\n", args[0])
			return nil
		},
	})
	return cmd
}

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Dump all tables and upload the archive to S3",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cfg, err := connect()
			if err != nil {
				return err
			}
			store, err := backup.NewS3Store(cfg.S3)
			if err != nil {
				return err
			}
			key, err := backup.NewService(db, store).Run(context.Background())
			if err != nil {
				return err
			}
			fmt.Println("uploaded", key)
			return nil
		},
	}
}

func restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <key>",
		Short: "Replace all tables with the contents of a backup archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, cfg, err := connect()
			if err != nil {
				return err
			}
			store, err := backup.NewS3Store(cfg.S3)
			if err != nil {
				return err
			}
			if err := backup.NewService(db, store).Restore(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Println("restored", args[0])
			return nil
		},
	}
}

var contentFixtures = map[string]string{
	"home": "## Welcome\n\nBrowse the index or search for a codename to get started.\n",
	"about": "## About\n\nA catalog of product and project codenames, with community-contributed\nimagery and references for each entry.\n",
}

func upsertContent(db *gorm.DB, name, markdown string) error {
	var existing models.ContentModel
	err := db.Where("name = ?", name).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Create(&models.ContentModel{Name: name, Markdown: markdown}).Error
	}
	if err != nil {
		return err
	}
	return db.Model(&existing).Update("markdown", markdown).Error
}

func seedSamples(db *gorm.DB) error {
	svc := codename.NewService(db)

	type sample struct {
		name        string
		summary     string
		description string
		refs        [][2]string
	}
	samples := []sample{
		{
			name:        "AGGRAVATED AVATAR",
			summary:     "A sample codename seeded for development.",
			description: "Seeded by `codenamectl db sample`. Safe to edit or delete.",
			refs: [][2]string{
				{"https://en.wikipedia.org/wiki/Code_name", "Background reading on codenames."},
			},
		},
		{
			name:        "AMUSED BOUCHE",
			summary:     "A second sample codename with no references.",
			description: "Seeded by `codenamectl db sample`. Safe to edit or delete.",
		},
	}

	for _, s := range samples {
		cn, err := svc.Create(s.name)
		if err != nil {
			if codename.IsDuplicate(err) {
				fmt.Printf("codename %q already exists, skipping\n", s.name)
				continue
			}
			return err
		}
		if err := svc.Update(cn, s.summary, s.description); err != nil {
			return err
		}
		for _, ref := range s.refs {
			if _, err := svc.AddReference(cn, ref[0], ref[1]); err != nil {
				return err
			}
		}
		fmt.Printf("codename %q seeded at /api/codename/%s\n", s.name, cn.Slug)
	}
	return nil
}
