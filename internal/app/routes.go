package app

import (
	"strings"

	"github.com/codename/server/internal/middleware"
	"github.com/codename/server/internal/modules/auth"
	"github.com/codename/server/internal/modules/backup"
	"github.com/codename/server/internal/modules/codename"
	"github.com/codename/server/internal/modules/content"
	"github.com/codename/server/internal/modules/image"
	"github.com/codename/server/internal/modules/user"
	pkgredis "github.com/codename/server/internal/pkg/redis"
	"github.com/codename/server/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(rc *pkgredis.Client) error {
	r := a.router
	db := a.db
	cfg := a.cfg

	authMW := middleware.Auth(db)
	adminMW := middleware.AdminAuth(db)

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c, "No such route.")
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	r.Static("/static", cfg.StaticDir)

	api := r.Group("/api")
	api.Use(middleware.OptionalAuth(db))
	api.Use(middleware.RateLimit(rc.Raw()))

	codenameSvc := codename.NewService(db)
	codename.NewHandler(codenameSvc, db).RegisterRoutes(api, adminMW)

	imageSvc := image.NewService(db, cfg.ImageDir())
	image.NewHandler(imageSvc, codenameSvc).RegisterRoutes(api, authMW, adminMW)

	content.NewHandler(db).RegisterRoutes(api, adminMW)
	user.NewHandler(db).RegisterRoutes(api, authMW, adminMW)

	twitter := auth.NewTwitterClient(cfg.Twitter.ClientKey, cfg.Twitter.ClientSecret, cfg.Twitter.CallbackURL)
	auth.NewHandler(auth.NewService(db, rc, twitter)).RegisterRoutes(api)

	store, err := backup.NewS3Store(cfg.S3)
	if err != nil {
		return err
	}
	backup.NewHandler(backup.NewService(db, store)).RegisterRoutes(api, adminMW)

	// Slugs that would shadow a fixed route under /api/codename/ are
	// rejected at creation time. The set is snapshotted once all routes
	// are registered.
	codenameSvc.SetReservedSlugs(reservedSlugSegments(r))

	return nil
}

// reservedSlugSegments collects the fixed path segments that occupy the
// :slug position under /api/codename/.
func reservedSlugSegments(r *gin.Engine) []string {
	const prefix = "/api/codename/"
	seen := map[string]struct{}{}
	var out []string
	for _, route := range r.Routes() {
		if !strings.HasPrefix(route.Path, prefix) {
			continue
		}
		seg, _, _ := strings.Cut(strings.TrimPrefix(route.Path, prefix), "/")
		if seg == "" || strings.HasPrefix(seg, ":") || strings.HasPrefix(seg, "*") {
			continue
		}
		if _, dup := seen[seg]; dup {
			continue
		}
		seen[seg] = struct{}{}
		out = append(out, seg)
	}
	return out
}
