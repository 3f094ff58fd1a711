package background

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredTokenPurger removes refresh-token rows past their expiry
type ExpiredTokenPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// ExpiredLinkDeactivator retires onboarding links past their expiry
type ExpiredLinkDeactivator interface {
	DeactivateExpired(ctx context.Context) (int64, error)
}

// CleanupManager periodically purges expired refresh tokens and deactivates
// expired onboarding links
type CleanupManager struct {
	refreshTokens ExpiredTokenPurger
	onboarding    ExpiredLinkDeactivator
	logger        *slog.Logger
	interval      time.Duration
	stopCh        chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	refreshTokens ExpiredTokenPurger,
	onboarding ExpiredLinkDeactivator,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		refreshTokens: refreshTokens,
		onboarding:    onboarding,
		logger:        logger,
		interval:      interval,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup performs one sweep over both tables
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	purged, err := cm.refreshTokens.DeleteExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to purge expired refresh tokens", slog.Any("error", err))
	} else if purged > 0 {
		cm.logger.Info("purged expired refresh tokens", slog.Int64("rows_deleted", purged))
	}

	deactivated, err := cm.onboarding.DeactivateExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to deactivate expired onboarding links", slog.Any("error", err))
	} else if deactivated > 0 {
		cm.logger.Info("deactivated expired onboarding links", slog.Int64("rows_updated", deactivated))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
