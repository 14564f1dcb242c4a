package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
)

// AccountRepository is an in-memory implementation of domain.AccountRepository.
// Reads return detached copies, matching the row-scan semantics of the SQL
// backend: mutating a returned account does not touch the stored record.
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

func cloneAccount(a *domain.Account) *domain.Account {
	c := *a
	if a.WorkingHoursStart != nil {
		v := *a.WorkingHoursStart
		c.WorkingHoursStart = &v
	}
	if a.WorkingHoursEnd != nil {
		v := *a.WorkingHoursEnd
		c.WorkingHoursEnd = &v
	}
	return &c
}

// NewAccountRepository creates a new in-memory account repository
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make(map[string]*domain.Account),
	}
}

// GetAll returns all accounts
func (r *AccountRepository) GetAll() ([]*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var accounts []*domain.Account
	for _, account := range r.accounts {
		accounts = append(accounts, cloneAccount(account))
	}
	return accounts, nil
}

// GetByID returns an account by its ID
func (r *AccountRepository) GetByID(id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, exists := r.accounts[id]
	if !exists {
		return nil, nil
	}
	return cloneAccount(account), nil
}

// GetByProviderID returns an account by its provider-assigned id
func (r *AccountRepository) GetByProviderID(providerID string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts {
		if account.ProviderAccountID == providerID {
			return cloneAccount(account), nil
		}
	}
	return nil, nil
}

// GetByOwner returns the account owned by the given member
func (r *AccountRepository) GetByOwner(ownerID string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts {
		if account.OwnerID == ownerID {
			return cloneAccount(account), nil
		}
	}
	return nil, nil
}

// UpdateStatus transitions the account status
func (r *AccountRepository) UpdateStatus(id string, status domain.AccountStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return nil
	}
	account.Status = status
	account.UpdatedAt = time.Now()
	return nil
}

// Save creates or updates an account
func (r *AccountRepository) Save(account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account.ID == "" {
		account.ID = uuid.NewString()
		account.CreatedAt = time.Now()
	}
	if account.Status == "" {
		account.Status = domain.AccountStatusConnecting
	}
	account.UpdatedAt = time.Now()

	r.accounts[account.ID] = cloneAccount(account)
	return nil
}

// Delete removes an account
func (r *AccountRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.accounts, id)
	return nil
}
