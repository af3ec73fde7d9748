package cache

import (
	"context"

	appstock "github.com/stockcore/backend/internal/application/stock"
	"github.com/stockcore/backend/internal/domain/shared"
	"github.com/stockcore/backend/internal/domain/stock"
	"go.uber.org/zap"
)

// BalanceInvalidationHandler drops cached balance snapshots when the balance
// changes, keeping cache staleness bounded by the event stream rather than
// only the TTL.
type BalanceInvalidationHandler struct {
	cache  appstock.BalanceCache
	logger *zap.Logger
}

// NewBalanceInvalidationHandler creates a new BalanceInvalidationHandler
func NewBalanceInvalidationHandler(cache appstock.BalanceCache, logger *zap.Logger) *BalanceInvalidationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceInvalidationHandler{
		cache:  cache,
		logger: logger.Named("balance_cache_invalidation"),
	}
}

// Handle invalidates the snapshot for the changed balance
func (h *BalanceInvalidationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	changed, ok := event.(*stock.BalanceChangedEvent)
	if !ok {
		return nil
	}

	key := appstock.BalanceCacheKey(changed.ProductID, changed.WarehouseID, changed.LocationID)
	if err := h.cache.Invalidate(ctx, key); err != nil {
		h.logger.Warn("balance cache invalidation failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// EventTypes subscribes the handler to balance changes only
func (h *BalanceInvalidationHandler) EventTypes() []string {
	return []string{stock.EventTypeBalanceChanged}
}

// Ensure BalanceInvalidationHandler implements EventHandler
var _ shared.EventHandler = (*BalanceInvalidationHandler)(nil)
