package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/n0umen0n/hypha-migration-suite/internal/migration"
)

// BalanceReader is the read-only token surface the balance service needs.
type BalanceReader interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	Decimals(ctx context.Context) (uint8, error)
}

// DefaultDecimals is assumed when the decimals call fails. The HYPHA token
// uses 18; a transient read failure should not fail a balance request.
const DefaultDecimals = 18

const (
	balanceTTL  = 10 * time.Second
	decimalsTTL = 1 * time.Hour
	decimalsKey = "token-decimals"
)

// BalanceInfo is the result of a balance read.
type BalanceInfo struct {
	Balance   string // base units
	Formatted string // decimal display string
	Decimals  int
}

// BalanceService reads token balances with a short-lived cache. Only
// balance and decimals reads are cached; verification state never is.
type BalanceService struct {
	token  BalanceReader
	cache  *gocache.Cache
	logger *zap.Logger
}

// NewBalanceService creates a balance service.
func NewBalanceService(token BalanceReader, logger *zap.Logger) *BalanceService {
	return &BalanceService{
		token:  token,
		cache:  gocache.New(balanceTTL, 5*time.Minute),
		logger: logger,
	}
}

// ReadBalance returns the token balance of address in base units and as a
// formatted decimal string.
func (s *BalanceService) ReadBalance(ctx context.Context, address string) (*BalanceInfo, error) {
	if !migration.ValidAddress(address) {
		return nil, fmt.Errorf("%w: %q", migration.ErrInvalidAddress, address)
	}

	cacheKey := "balance:" + strings.ToLower(address)
	if cached, ok := s.cache.Get(cacheKey); ok {
		info := cached.(BalanceInfo)
		return &info, nil
	}

	balance, err := s.token.BalanceOf(ctx, common.HexToAddress(address))
	if err != nil {
		return nil, fmt.Errorf("%w: balance query: %v", migration.ErrChain, err)
	}

	info := BalanceInfo{
		Balance:   balance.String(),
		Decimals:  s.decimals(ctx),
		Formatted: "",
	}
	info.Formatted = migration.FromBaseUnits(balance, info.Decimals)

	s.cache.Set(cacheKey, info, balanceTTL)
	return &info, nil
}

// decimals returns the token's decimal precision, cached for an hour. On
// read failure it falls back to DefaultDecimals rather than failing the
// whole request.
func (s *BalanceService) decimals(ctx context.Context) int {
	if cached, ok := s.cache.Get(decimalsKey); ok {
		return cached.(int)
	}

	d, err := s.token.Decimals(ctx)
	if err != nil {
		s.logger.Warn("Decimals query failed, assuming default",
			zap.Int("default", DefaultDecimals),
			zap.Error(err))
		return DefaultDecimals
	}

	s.cache.Set(decimalsKey, int(d), decimalsTTL)
	return int(d)
}
