package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zenbase-ai/tech-for-iran-sub001/internal/domain"
)

const accountColumns = `id, provider_account_id, owner_id, status, max_daily_actions,
	timezone, working_hours_start, working_hours_end, created_at, updated_at`

// AccountRepository is a SQLite implementation of domain.AccountRepository.
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository creates a new AccountRepository backed by SQLite.
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// GetAll returns all accounts regardless of status.
func (r *AccountRepository) GetAll() ([]*domain.Account, error) {
	rows, err := r.db.Query(`SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// GetByID returns an account by ID.
func (r *AccountRepository) GetByID(id string) (*domain.Account, error) {
	row := r.db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// GetByProviderID returns an account by its provider-assigned id.
func (r *AccountRepository) GetByProviderID(providerID string) (*domain.Account, error) {
	row := r.db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE provider_account_id = ?`, providerID)
	return scanAccount(row)
}

// GetByOwner returns the account owned by the given member.
func (r *AccountRepository) GetByOwner(ownerID string) (*domain.Account, error) {
	row := r.db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE owner_id = ?`, ownerID)
	return scanAccount(row)
}

// UpdateStatus transitions the account status.
func (r *AccountRepository) UpdateStatus(id string, status domain.AccountStatus) error {
	_, err := r.db.Exec(`UPDATE accounts SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	return err
}

// Save inserts or updates an account.
func (r *AccountRepository) Save(account *domain.Account) error {
	now := time.Now().UTC()
	if account.ID == "" {
		account.ID = uuid.NewString()
		account.CreatedAt = now
	}
	if account.Status == "" {
		account.Status = domain.AccountStatusConnecting
	}
	account.UpdatedAt = now

	_, err := r.db.Exec(`INSERT INTO accounts
		(id, provider_account_id, owner_id, status, max_daily_actions, timezone,
		working_hours_start, working_hours_end, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			provider_account_id = excluded.provider_account_id,
			owner_id = excluded.owner_id,
			status = excluded.status,
			max_daily_actions = excluded.max_daily_actions,
			timezone = excluded.timezone,
			working_hours_start = excluded.working_hours_start,
			working_hours_end = excluded.working_hours_end,
			updated_at = excluded.updated_at`,
		account.ID, account.ProviderAccountID, account.OwnerID, string(account.Status),
		account.MaxDailyActions, account.Timezone,
		nullableInt(account.WorkingHoursStart), nullableInt(account.WorkingHoursEnd),
		account.CreatedAt.UTC(), account.UpdatedAt.UTC())
	return err
}

// Delete removes an account; engagements and steps cascade.
func (r *AccountRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM accounts WHERE id = ?`, id)
	return err
}

func scanAccount(scanner interface {
	Scan(dest ...any) error
}) (*domain.Account, error) {
	var (
		account  domain.Account
		timezone sql.NullString
		whStart  sql.NullInt64
		whEnd    sql.NullInt64
	)

	if err := scanner.Scan(
		&account.ID,
		&account.ProviderAccountID,
		&account.OwnerID,
		&account.Status,
		&account.MaxDailyActions,
		&timezone,
		&whStart,
		&whEnd,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if timezone.Valid {
		account.Timezone = timezone.String
	}
	if whStart.Valid {
		v := int(whStart.Int64)
		account.WorkingHoursStart = &v
	}
	if whEnd.Valid {
		v := int(whEnd.Int64)
		account.WorkingHoursEnd = &v
	}
	return &account, nil
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
