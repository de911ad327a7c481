package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/localnerve/formsdb/internal/config"
	"github.com/localnerve/formsdb/internal/logging"
	"github.com/localnerve/formsdb/internal/utils"
)

type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Authorizer   string            `json:"authorizer,omitempty"`
	Redis        string            `json:"redis,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

// healthReport collects probe results from concurrent checks
type healthReport struct {
	mu     sync.Mutex
	result HealthCheckResult
}

func (r *healthReport) fail(component, status, detailKey string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.result.Status = "unhealthy"
	r.result.Details[detailKey] = err.Error()
	msg := fmt.Sprintf("%s check failed: %v", component, err)
	if r.result.ErrorMessage == "" {
		r.result.ErrorMessage = msg
	} else {
		r.result.ErrorMessage += "; " + msg
	}
	switch component {
	case "database":
		r.result.Database = status
	case "authorizer":
		r.result.Authorizer = status
	case "redis":
		r.result.Redis = status
	}
	logging.Logger.Warnf("Health check failed - %s: %v", component, err)
}

func (r *healthReport) ok(component string, details map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch component {
	case "database":
		r.result.Database = "ok"
	case "authorizer":
		r.result.Authorizer = "ok"
	case "redis":
		r.result.Redis = "ok"
	}
	for k, v := range details {
		r.result.Details[k] = v
	}
}

// HealthCheck probes the database, the auth provider (authorizer mode) and
// redis (when configured) concurrently. rdb may be nil.
func HealthCheck(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client) HealthCheckResult {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	report := &healthReport{result: HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}}

	var g errgroup.Group

	g.Go(func() error {
		sqlDB, err := db.DB()
		if err != nil {
			report.fail("database", "error", "database_error", err)
			return nil
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			report.fail("database", "unreachable", "database_ping_error", err)
			return nil
		}
		report.ok("database", map[string]string{
			"database_type": cfg.DBType,
			"database_name": cfg.DBAppDatabase,
		})
		return nil
	})

	if cfg.AuthMode == "authorizer" {
		g.Go(func() error {
			if err := utils.PingAuthorizer(ctx, cfg.AuthzURL); err != nil {
				report.fail("authorizer", "unreachable", "authorizer_error", err)
				return nil
			}
			report.ok("authorizer", map[string]string{"authorizer_url": cfg.AuthzURL})
			return nil
		})
	}

	if rdb != nil {
		g.Go(func() error {
			if err := rdb.Ping(ctx).Err(); err != nil {
				report.fail("redis", "unreachable", "redis_error", err)
				return nil
			}
			report.ok("redis", nil)
			return nil
		})
	}

	_ = g.Wait()

	if report.result.Status == "healthy" {
		logging.Logger.Debug("Health check passed - all systems operational")
	}
	return report.result
}
