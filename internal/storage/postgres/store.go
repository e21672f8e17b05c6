package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	interfaces "github.com/sheikh-saqib/transaction-approval-ledger/internal/interfaces"
	"github.com/sheikh-saqib/transaction-approval-ledger/internal/models"
)

const (
	uniqueViolation = "23505"
	numericOverflow = "22003"
)

const accountColumns = `id, account_number, username, email, role, balance, is_frozen, is_active, created_at, updated_at`

const transactionColumns = `id, transaction_id, account_id, type, amount, description,
	recipient_account_number, recipient_name, status, admin_id, action_date, admin_comment,
	balance_after, created_at, updated_at`

// PostgresLedgerStore keeps accounts and transactions in PostgreSQL. Every
// conditional write runs in one database transaction; the WHERE clauses on
// status and balance make the writes safe across processes.
type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (p *PostgresLedgerStore) CreateAccount(ctx context.Context, account models.Account) error {
	const query = `INSERT INTO accounts (` + accountColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err := p.db.ExecContext(ctx, query,
		account.ID, account.AccountNumber, account.Username, account.Email, string(account.Role),
		account.Balance, account.IsFrozen, account.IsActive, account.CreatedAt, account.UpdatedAt)
	if isUniqueViolation(err) {
		return models.Invalid("accountNumber", "already exists")
	}
	return err
}

func (p *PostgresLedgerStore) GetAccount(ctx context.Context, id string) (models.Account, error) {
	accountID, ok := parseID(id)
	if !ok {
		return models.Account{}, models.ErrAccountNotFound
	}
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(p.db.QueryRowContext(ctx, query, accountID))
}

func (p *PostgresLedgerStore) GetAccountByNumber(ctx context.Context, accountNumber string) (models.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE account_number = $1`
	return scanAccount(p.db.QueryRowContext(ctx, query, accountNumber))
}

func (p *PostgresLedgerStore) ListAccounts(ctx context.Context, filter models.AccountFilter) ([]models.Account, int, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Frozen != nil {
		args = append(args, *filter.Frozen)
		conds = append(conds, fmt.Sprintf("is_frozen = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(username ILIKE $%d OR email ILIKE $%d OR account_number ILIKE $%d)", n, n, n))
	}
	where := whereClause(conds)

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + accountColumns + ` FROM accounts` + where + ` ORDER BY created_at DESC, id DESC` + pageClause(&args, filter.Page, filter.Limit)
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return accounts, total, nil
}

func (p *PostgresLedgerStore) SetFrozen(ctx context.Context, id string, frozen bool) (models.Account, error) {
	accountID, ok := parseID(id)
	if !ok {
		return models.Account{}, models.ErrAccountNotFound
	}
	const query = `UPDATE accounts SET is_frozen = $2, updated_at = NOW()
	WHERE id = $1 RETURNING ` + accountColumns
	return scanAccount(p.db.QueryRowContext(ctx, query, accountID, frozen))
}

func (p *PostgresLedgerStore) InsertTransaction(ctx context.Context, tx models.Transaction) error {
	const query = `INSERT INTO transactions (` + transactionColumns + `)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`

	var rcptNumber, rcptName sql.NullString
	if tx.Recipient != nil {
		rcptNumber = sql.NullString{String: tx.Recipient.AccountNumber, Valid: true}
		rcptName = sql.NullString{String: tx.Recipient.Name, Valid: true}
	}
	var adminID, comment sql.NullString
	var actionDate sql.NullTime
	if tx.AdminAction != nil {
		adminID = sql.NullString{String: tx.AdminAction.AdminID, Valid: true}
		comment = sql.NullString{String: tx.AdminAction.Comment, Valid: true}
		actionDate = sql.NullTime{Time: tx.AdminAction.ActionDate, Valid: true}
	}

	_, err := p.db.ExecContext(ctx, query,
		tx.ID, tx.TransactionID, tx.AccountID, string(tx.Type), tx.Amount, tx.Description,
		rcptNumber, rcptName, string(tx.Status), adminID, actionDate, comment,
		tx.BalanceAfter, tx.CreatedAt, tx.UpdatedAt)
	if isUniqueViolation(err) {
		return models.ErrDuplicateTransactionID
	}
	return err
}

func (p *PostgresLedgerStore) GetTransaction(ctx context.Context, ref string) (models.Transaction, error) {
	return getTransaction(ctx, p.db, ref)
}

// getTransaction resolves ref against the primary key when it is a UUID and
// against the human-readable transaction_id otherwise.
func getTransaction(ctx context.Context, q queryer, ref string) (models.Transaction, error) {
	const selectTx = `SELECT ` + transactionColumns + ` FROM transactions`
	if id, ok := parseID(ref); ok {
		return scanTransaction(q.QueryRowContext(ctx, selectTx+` WHERE id = $1`, id))
	}
	return scanTransaction(q.QueryRowContext(ctx, selectTx+` WHERE transaction_id = $1`, ref))
}

func (p *PostgresLedgerStore) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error) {
	var (
		conds []string
		args  []any
	)
	if filter.AccountID != "" {
		accountID, ok := parseID(filter.AccountID)
		if !ok {
			// no account can own it
			return nil, 0, nil
		}
		args = append(args, accountID)
		conds = append(conds, fmt.Sprintf("account_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	where := whereClause(conds)

	var total int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions` + where +
		` ORDER BY created_at DESC, transaction_id DESC` + pageClause(&args, filter.Page, filter.Limit)
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// ApplyApproval commits the status flip, the owner balance compare-and-swap
// and the optional credit leg in one database transaction.
func (p *PostgresLedgerStore) ApplyApproval(ctx context.Context, commit models.ApprovalCommit) (outcome models.ApprovalOutcome, err error) {
	txID, ok := parseID(commit.TransactionID)
	if !ok {
		return models.ApprovalOutcome{}, models.ErrTransactionNotFound
	}
	ownerID, ok := parseID(commit.OwnerID)
	if !ok {
		return models.ApprovalOutcome{}, models.ErrAccountNotFound
	}

	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.ApprovalOutcome{}, err
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	// Flip the status first; only one caller can match status = 'pending'
	res, err := dbTx.ExecContext(ctx, `UPDATE transactions
	SET status = 'approved', balance_after = $2, admin_id = $3, action_date = $4, admin_comment = $5, updated_at = $4
	WHERE id = $1 AND status = 'pending'`,
		txID, commit.NewBalance, commit.AdminAction.AdminID, commit.AdminAction.ActionDate, commit.AdminAction.Comment)
	if err != nil {
		return models.ApprovalOutcome{}, mapOverflow(err, "amount")
	}
	if err = transitionFailure(ctx, dbTx, res, txID); err != nil {
		return models.ApprovalOutcome{}, err
	}

	// Owner balance, only if nobody moved it since the caller read it
	res, err = dbTx.ExecContext(ctx, `UPDATE accounts SET balance = $3, updated_at = $4
	WHERE id = $1 AND balance = $2 AND NOT is_frozen`,
		ownerID, commit.ExpectedBalance, commit.NewBalance, commit.At)
	if err != nil {
		if isCheckViolation(err) {
			err = models.ErrInsufficientFunds
		}
		return models.ApprovalOutcome{}, mapOverflow(err, "amount")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Work out which condition failed
		var frozen bool
		scanErr := dbTx.QueryRowContext(ctx, `SELECT is_frozen FROM accounts WHERE id = $1`, ownerID).Scan(&frozen)
		switch {
		case errors.Is(scanErr, sql.ErrNoRows):
			err = models.ErrAccountNotFound
		case scanErr != nil:
			err = scanErr
		case frozen:
			err = models.ErrAccountFrozen
		default:
			err = models.ErrBalanceConflict
		}
		return models.ApprovalOutcome{}, err
	}

	// Credit leg; a recipient that cannot receive is skipped, not an error
	credited := false
	if creditID, ok := parseID(commit.CreditAccountID); ok {
		res, err = dbTx.ExecContext(ctx, `UPDATE accounts SET balance = balance + $2, updated_at = $3
		WHERE id = $1 AND is_active AND NOT is_frozen`,
			creditID, commit.CreditAmount, commit.At)
		if err != nil {
			return models.ApprovalOutcome{}, mapOverflow(err, "recipient")
		}
		n, _ := res.RowsAffected()
		credited = n == 1
	}

	// Read back the finalized row inside the same transaction
	tx, err := getTransaction(ctx, dbTx, txID.String())
	if err != nil {
		return models.ApprovalOutcome{}, err
	}

	if err = dbTx.Commit(); err != nil {
		return models.ApprovalOutcome{}, err
	}
	return models.ApprovalOutcome{Transaction: tx, Credited: credited}, nil
}

func (p *PostgresLedgerStore) ApplyDecline(ctx context.Context, id string, action models.AdminAction) (declined models.Transaction, err error) {
	txID, ok := parseID(id)
	if !ok {
		return models.Transaction{}, models.ErrTransactionNotFound
	}

	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Transaction{}, err
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	res, err := dbTx.ExecContext(ctx, `UPDATE transactions
	SET status = 'declined', admin_id = $2, action_date = $3, admin_comment = $4, updated_at = $3
	WHERE id = $1 AND status = 'pending'`,
		txID, action.AdminID, action.ActionDate, action.Comment)
	if err != nil {
		return models.Transaction{}, err
	}
	if err = transitionFailure(ctx, dbTx, res, txID); err != nil {
		return models.Transaction{}, err
	}

	declined, err = getTransaction(ctx, dbTx, txID.String())
	if err != nil {
		return models.Transaction{}, err
	}
	if err = dbTx.Commit(); err != nil {
		return models.Transaction{}, err
	}
	return declined, nil
}

func (p *PostgresLedgerStore) DeletePending(ctx context.Context, id, ownerID string) (err error) {
	txID, ok := parseID(id)
	if !ok {
		return models.ErrTransactionNotFound
	}
	ownerUUID, ok := parseID(ownerID)
	if !ok {
		return models.ErrTransactionNotFound
	}

	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	res, err := dbTx.ExecContext(ctx, `DELETE FROM transactions
	WHERE id = $1 AND account_id = $2 AND status = 'pending'`, txID, ownerUUID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// A foreign transaction reads as missing to its non-owner
		var owner uuid.UUID
		scanErr := dbTx.QueryRowContext(ctx, `SELECT account_id FROM transactions WHERE id = $1`, txID).Scan(&owner)
		switch {
		case errors.Is(scanErr, sql.ErrNoRows), scanErr == nil && owner != ownerUUID:
			err = models.ErrTransactionNotFound
		case scanErr != nil:
			err = scanErr
		default:
			err = models.ErrNotPending
		}
		return err
	}
	return dbTx.Commit()
}

// transitionFailure explains a conditional status update that matched no row.
func transitionFailure(ctx context.Context, dbTx *sql.Tx, res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var status string
	err = dbTx.QueryRowContext(ctx, `SELECT status FROM transactions WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrTransactionNotFound
	}
	if err != nil {
		return err
	}
	return models.ErrNotPending
}

func scanAccount(row rowScanner) (models.Account, error) {
	var (
		acc  models.Account
		role string
	)
	err := row.Scan(&acc.ID, &acc.AccountNumber, &acc.Username, &acc.Email, &role,
		&acc.Balance, &acc.IsFrozen, &acc.IsActive, &acc.CreatedAt, &acc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, models.ErrAccountNotFound
	}
	if err != nil {
		return models.Account{}, err
	}
	acc.Role = models.Role(role)
	return acc, nil
}

func scanTransaction(row rowScanner) (models.Transaction, error) {
	var (
		tx                   models.Transaction
		txType, status       string
		rcptNumber, rcptName sql.NullString
		adminID, comment     sql.NullString
		actionDate           sql.NullTime
		balanceAfter         decimal.NullDecimal
	)
	err := row.Scan(&tx.ID, &tx.TransactionID, &tx.AccountID, &txType, &tx.Amount, &tx.Description,
		&rcptNumber, &rcptName, &status, &adminID, &actionDate, &comment,
		&balanceAfter, &tx.CreatedAt, &tx.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, models.ErrTransactionNotFound
	}
	if err != nil {
		return models.Transaction{}, err
	}

	tx.Type = models.TransactionType(txType)
	tx.Status = models.TransactionStatus(status)
	tx.BalanceAfter = balanceAfter
	if rcptNumber.Valid {
		tx.Recipient = &models.Recipient{AccountNumber: rcptNumber.String, Name: rcptName.String}
	}
	if adminID.Valid {
		tx.AdminAction = &models.AdminAction{
			AdminID:    adminID.String,
			ActionDate: actionDate.Time,
			Comment:    comment.String,
		}
	}
	return tx, nil
}

func whereClause(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// pageClause appends LIMIT/OFFSET placeholders; limit <= 0 means no paging.
func pageClause(args *[]any, page, limit int) string {
	if limit <= 0 {
		return ""
	}
	if page < 1 {
		page = 1
	}
	*args = append(*args, limit, models.Offset(page, limit))
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(*args)-1, len(*args))
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// parseID returns the UUID form of id. Anything else cannot be a primary key,
// and callers report it as not found without a round trip.
func parseID(id string) (uuid.UUID, bool) {
	if id == "" {
		return uuid.Nil, false
	}
	parsed, err := uuid.Parse(id)
	return parsed, err == nil
}

// mapOverflow turns a NUMERIC(18,2) overflow into a validation error on field.
func mapOverflow(err error, field string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == numericOverflow {
		return models.Invalid(field, "balance would exceed the maximum")
	}
	return err
}

func isCheckViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "check_violation"
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
