package service

import (
	"context"
	"strings"
	"sync"

	"github.com/n0umen0n/hypha-migration-suite/internal/models"
)

// Ledger records issuance attempts keyed by claim. *database.DB is the
// durable implementation; MemoryLedger backs single-process deployments and
// tests. Either way the coordinator consults it before every submission, so
// a claim that was already issued replays its receipt instead of minting
// twice.
type Ledger interface {
	GetIssuance(ctx context.Context, account, ethAddress string) (*models.Issuance, error)
	CreateIssuance(ctx context.Context, iss *models.Issuance) error
	MarkSubmitted(ctx context.Context, id int64, txHash string) error
	MarkConfirmed(ctx context.Context, id int64, blockNumber, gasUsed int64) error
	MarkUnconfirmed(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, errorMsg string) error
}

// MemoryLedger is an in-process Ledger. It provides the same
// one-issuance-per-claim guarantee as the database ledger but does not
// survive a restart.
type MemoryLedger struct {
	mu     sync.Mutex
	nextID int64
	byKey  map[string]*models.Issuance
	byID   map[int64]*models.Issuance
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		nextID: 1,
		byKey:  make(map[string]*models.Issuance),
		byID:   make(map[int64]*models.Issuance),
	}
}

func memKey(account, ethAddress string) string {
	return account + "|" + strings.ToLower(ethAddress)
}

func (m *MemoryLedger) GetIssuance(_ context.Context, account, ethAddress string) (*models.Issuance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	iss, ok := m.byKey[memKey(account, ethAddress)]
	if !ok {
		return nil, nil
	}
	copied := *iss
	return &copied, nil
}

func (m *MemoryLedger) CreateIssuance(_ context.Context, iss *models.Issuance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memKey(iss.Account, iss.EthAddress)
	if _, exists := m.byKey[key]; exists {
		return models.ErrDuplicateIssuance
	}
	iss.ID = m.nextID
	m.nextID++
	stored := *iss
	m.byKey[key] = &stored
	m.byID[iss.ID] = &stored
	return nil
}

func (m *MemoryLedger) MarkSubmitted(_ context.Context, id int64, txHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if iss, ok := m.byID[id]; ok {
		iss.Status = models.IssuanceStatusSubmitted
		iss.TxHash = &txHash
	}
	return nil
}

func (m *MemoryLedger) MarkConfirmed(_ context.Context, id int64, blockNumber, gasUsed int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if iss, ok := m.byID[id]; ok {
		iss.Status = models.IssuanceStatusConfirmed
		iss.BlockNumber = &blockNumber
		iss.GasUsed = &gasUsed
		iss.ErrorMessage = nil
	}
	return nil
}

func (m *MemoryLedger) MarkUnconfirmed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if iss, ok := m.byID[id]; ok {
		iss.Status = models.IssuanceStatusUnconfirmed
	}
	return nil
}

// MarkFailed drops the row so the claim key is free for a later attempt,
// mirroring the database ledger's behavior.
func (m *MemoryLedger) MarkFailed(_ context.Context, id int64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	iss, ok := m.byID[id]
	if !ok {
		return nil
	}
	delete(m.byID, id)
	delete(m.byKey, memKey(iss.Account, iss.EthAddress))
	return nil
}
