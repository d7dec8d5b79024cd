package di

import (
	"context"

	"relmap/application/notify"
	"relmap/application/ports"
	"relmap/application/session"
	"relmap/infrastructure/config"
	"relmap/interfaces/http/rest"
	"relmap/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	Tables      ports.TableService
	Connections ports.ConnectionStore
	Identity    ports.IdentityProvider
	Inbox       *notify.Inbox
	Sessions    *session.Manager
	CloudWatch  *observability.CloudWatchMetrics
	Router      *rest.Router

	started bool
}

// Start launches the background loops: idle session eviction and metric flushing
func (c *Container) Start(ctx context.Context) {
	c.Sessions.Start(ctx)
	if c.CloudWatch != nil {
		c.CloudWatch.Start(ctx)
	}
	c.started = true
}

// Shutdown drains every session's sync queue, then flushes metrics
func (c *Container) Shutdown(ctx context.Context) error {
	err := c.Sessions.Stop(ctx)
	if c.CloudWatch != nil {
		if c.started {
			c.CloudWatch.Stop()
		} else {
			c.CloudWatch.Flush(ctx)
		}
	}
	_ = c.Logger.Sync()
	return err
}
