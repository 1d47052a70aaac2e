package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-account-lifecycle/internal/interface/middleware"
)

// Guard holds the access middleware shared by modules. Admin runs after Auth.
type Guard struct {
	Auth  gin.HandlerFunc
	Admin gin.HandlerFunc
}

// authed opens a group behind Auth with the per-IP and per-user limits every
// protected route carries.
func (g Guard) authed(rg *gin.RouterGroup, rdb *redis.Client) *gin.RouterGroup {
	grp := rg.Group("/")
	grp.Use(g.Auth)
	grp.Use(
		middleware.RateLimit(rdb, 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(rdb, 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	return grp
}

func (g Guard) admin(rg *gin.RouterGroup, rdb *redis.Client) *gin.RouterGroup {
	grp := g.authed(rg, rdb)
	grp.Use(g.Admin)
	return grp
}
