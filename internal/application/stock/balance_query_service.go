package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stockcore/backend/internal/domain/shared"
	"github.com/stockcore/backend/internal/domain/shared/valueobject"
	"github.com/stockcore/backend/internal/domain/stock"
	"go.uber.org/zap"
)

// DefaultBalanceCacheTTL bounds how stale a cached balance snapshot can get
const DefaultBalanceCacheTTL = 30 * time.Second

// BalanceCache is a read-through cache for balance snapshots. A nil, nil
// return means a miss. Implementations must tolerate being skipped entirely.
type BalanceCache interface {
	Get(ctx context.Context, key string) (*BalanceResponse, error)
	Set(ctx context.Context, key string, value *BalanceResponse, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// BalanceCacheKey builds the cache key for one composite balance identity
func BalanceCacheKey(productID, warehouseID uuid.UUID, locationID *uuid.UUID) string {
	loc := "-"
	if locationID != nil {
		loc = locationID.String()
	}
	return fmt.Sprintf("stock:balance:%s:%s:%s", productID, warehouseID, loc)
}

// BalanceQueryService answers read-side questions about balances and the
// transaction ledger. Reads go around the transaction scope; the snapshot
// cache is optional and trades bounded staleness for read throughput.
type BalanceQueryService struct {
	balanceRepo stock.BalanceRepository
	ledgerRepo  stock.LedgerRepository
	cache       BalanceCache
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewBalanceQueryService creates a new BalanceQueryService
func NewBalanceQueryService(balanceRepo stock.BalanceRepository, ledgerRepo stock.LedgerRepository, logger *zap.Logger) *BalanceQueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceQueryService{
		balanceRepo: balanceRepo,
		ledgerRepo:  ledgerRepo,
		cacheTTL:    DefaultBalanceCacheTTL,
		logger:      logger.Named("balance_query"),
	}
}

// SetCache enables the snapshot cache
func (s *BalanceQueryService) SetCache(cache BalanceCache, ttl time.Duration) {
	s.cache = cache
	if ttl > 0 {
		s.cacheTTL = ttl
	}
}

// CurrentBalance returns the snapshot for one composite balance identity,
// serving from cache when possible
func (s *BalanceQueryService) CurrentBalance(ctx context.Context, productID, warehouseID uuid.UUID, locationID *uuid.UUID) (*BalanceResponse, error) {
	key := BalanceCacheKey(productID, warehouseID, locationID)
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("balance cache read failed", zap.String("key", key), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	bal, err := s.balanceRepo.FindByComposite(ctx, productID, warehouseID, locationID)
	if err != nil {
		return nil, err
	}
	resp := ToBalanceResponse(bal)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, &resp, s.cacheTTL); err != nil {
			s.logger.Warn("balance cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return &resp, nil
}

// GetByID returns the snapshot for one balance by its ID
func (s *BalanceQueryService) GetByID(ctx context.Context, balanceID uuid.UUID) (*BalanceResponse, error) {
	bal, err := s.balanceRepo.FindByID(ctx, balanceID)
	if err != nil {
		return nil, err
	}
	resp := ToBalanceResponse(bal)
	return &resp, nil
}

// BalancesForProduct returns every balance of one product across warehouses
func (s *BalanceQueryService) BalancesForProduct(ctx context.Context, productID uuid.UUID) ([]BalanceResponse, error) {
	balances, err := s.balanceRepo.FindByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	responses := make([]BalanceResponse, 0, len(balances))
	for i := range balances {
		responses = append(responses, ToBalanceResponse(&balances[i]))
	}
	return responses, nil
}

// ListBalances returns balances matching the filter, optionally scoped to a
// warehouse, paginated
func (s *BalanceQueryService) ListBalances(ctx context.Context, warehouseID *uuid.UUID, filter shared.Filter) (shared.Paginated[BalanceResponse], error) {
	var page shared.Paginated[stock.StockLocationBalance]
	var err error
	if warehouseID != nil {
		page, err = s.balanceRepo.FindByWarehouse(ctx, *warehouseID, filter)
	} else {
		page, err = s.balanceRepo.FindAll(ctx, filter)
	}
	if err != nil {
		return shared.Paginated[BalanceResponse]{}, err
	}

	items := make([]BalanceResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, ToBalanceResponse(&page.Items[i]))
	}
	return shared.Paginated[BalanceResponse]{
		Items:      items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}, nil
}

// History returns a balance's ledger lines in replay order, optionally
// bounded to a time window
func (s *BalanceQueryService) History(ctx context.Context, balanceID uuid.UUID, from, to *time.Time) ([]TransactionLineResponse, error) {
	lines, err := s.ledgerRepo.LinesForBalance(ctx, balanceID, from, to)
	if err != nil {
		return nil, err
	}
	responses := make([]TransactionLineResponse, 0, len(lines))
	for i := range lines {
		responses = append(responses, ToTransactionLineResponse(&lines[i]))
	}
	return responses, nil
}

// DocumentHistory returns every ledger line recorded under one document
func (s *BalanceQueryService) DocumentHistory(ctx context.Context, kind valueobject.DocumentKind, id string) ([]TransactionLineResponse, error) {
	lines, err := s.ledgerRepo.LinesForDocument(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	responses := make([]TransactionLineResponse, 0, len(lines))
	for i := range lines {
		responses = append(responses, ToTransactionLineResponse(&lines[i]))
	}
	return responses, nil
}

// Transaction returns one ledger header with its lines
func (s *BalanceQueryService) Transaction(ctx context.Context, headerID uuid.UUID) (*TransactionHeaderResponse, error) {
	header, err := s.ledgerRepo.HeaderByID(ctx, headerID)
	if err != nil {
		return nil, err
	}
	resp := ToTransactionHeaderResponse(header)
	return &resp, nil
}
