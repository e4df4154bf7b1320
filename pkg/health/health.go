package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("health", fx.Provide(ProvideHealth))

type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type Health struct {
	Status string       `json:"status"`
	Deps   []Dependency `json:"deps,omitempty"`
}

type HealthService interface {
	Liveness(c *gin.Context)
	Readiness(c *gin.Context)
}

type health struct {
	db    *gorm.DB
	redis *redis.Client
}

type HealthParams struct {
	fx.In
	DB    *gorm.DB      `optional:"true"`
	Redis *redis.Client `optional:"true"`
}

func ProvideHealth(p HealthParams) HealthService {
	return &health{db: p.DB, redis: p.Redis}
}

func (h *health) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, Health{Status: "ok"})
}

func (h *health) Readiness(c *gin.Context) {
	out := Health{Status: "ok"}
	status := http.StatusOK

	if h.db != nil {
		dep := Dependency{Name: "database", Status: "ok"}
		if sqlDB, err := h.db.DB(); err != nil {
			dep.Status, dep.Message = "down", err.Error()
		} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			dep.Status, dep.Message = "down", err.Error()
		}
		if dep.Status != "ok" {
			out.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		out.Deps = append(out.Deps, dep)
	}

	if h.redis != nil {
		dep := Dependency{Name: "redis", Status: "ok"}
		if err := h.redis.Ping(c.Request.Context()).Err(); err != nil {
			dep.Status, dep.Message = "down", err.Error()
			out.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		out.Deps = append(out.Deps, dep)
	}

	c.JSON(status, out)
}
