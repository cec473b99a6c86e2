package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"marketplace-chat/internal/models"
)

var ErrThreadNotFound = errors.New("thread not found")

// ThreadRepository abstracts thread and per-viewer flag persistence.
type ThreadRepository interface {
	CreateOrGetThread(ctx context.Context, buyerID int, sellerID int) (models.Thread, error)
	GetThread(ctx context.Context, threadID int) (models.Thread, error)
	IsParticipant(ctx context.Context, threadID int, userID int) (bool, error)
	ListThreads(ctx context.Context, userID int, includeArchived bool) ([]models.ThreadSummary, error)
	GetFlags(ctx context.Context, threadID int, userID int) (models.ThreadFlags, error)
	SetMuted(ctx context.Context, threadID int, userID int, muted bool) (bool, error)
	SetArchived(ctx context.Context, threadID int, userID int, archived bool) (bool, error)
	SetBlocked(ctx context.Context, threadID int, userID int, blocked bool) (bool, error)
	MarkRead(ctx context.Context, threadID int, userID int) error
}

// ThreadRepo is a sqlx implementation of ThreadRepository.
type ThreadRepo struct {
	db *sqlx.DB
}

// NewThreadRepo constructs a ThreadRepo.
func NewThreadRepo(db *sqlx.DB) *ThreadRepo {
	return &ThreadRepo{db: db}
}

// CreateOrGetThread returns the thread between buyer and seller, creating it
// on first contact.
func (r *ThreadRepo) CreateOrGetThread(ctx context.Context, buyerID int, sellerID int) (models.Thread, error) {
	if buyerID == sellerID {
		return models.Thread{}, errors.New("cannot open thread with self")
	}

	var thread models.Thread
	query := `SELECT id, buyer_id, seller_id, created_at FROM threads WHERE buyer_id=$1 AND seller_id=$2`
	err := r.db.GetContext(ctx, &thread, query, buyerID, sellerID)
	if err == nil {
		return thread, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Thread{}, err
	}

	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO threads (buyer_id, seller_id) VALUES ($1, $2)
         ON CONFLICT (buyer_id, seller_id) DO UPDATE SET buyer_id = EXCLUDED.buyer_id
         RETURNING id, buyer_id, seller_id, created_at`, buyerID, sellerID).
		Scan(&thread.ID, &thread.BuyerID, &thread.SellerID, &thread.CreatedAt)
	return thread, err
}

// GetThread fetches a thread by id.
func (r *ThreadRepo) GetThread(ctx context.Context, threadID int) (models.Thread, error) {
	var thread models.Thread
	err := r.db.GetContext(ctx, &thread, `SELECT id, buyer_id, seller_id, created_at FROM threads WHERE id=$1`, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Thread{}, ErrThreadNotFound
	}
	return thread, err
}

// IsParticipant checks whether a user belongs to the thread.
func (r *ThreadRepo) IsParticipant(ctx context.Context, threadID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM threads WHERE id=$1 AND (buyer_id=$2 OR seller_id=$2))`, threadID, userID)
	return exists, err
}

// ListThreads returns the viewer's threads, newest first. Archived threads
// are filtered out unless includeArchived is set.
func (r *ThreadRepo) ListThreads(ctx context.Context, userID int, includeArchived bool) ([]models.ThreadSummary, error) {
	query := `SELECT t.id, t.buyer_id, t.seller_id, t.created_at,
            COALESCE(f.archived, FALSE) AS archived, COALESCE(f.muted, FALSE) AS muted
        FROM threads t
        LEFT JOIN thread_flags f ON f.thread_id = t.id AND f.user_id=$1
        WHERE (t.buyer_id=$1 OR t.seller_id=$1)
        AND ($2 OR COALESCE(f.archived, FALSE) = FALSE)
        ORDER BY t.created_at DESC`
	rows, err := r.db.QueryxContext(ctx, query, userID, includeArchived)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.ThreadSummary
	for rows.Next() {
		var row struct {
			models.Thread
			Archived bool `db:"archived"`
			Muted    bool `db:"muted"`
		}
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		result = append(result, models.ThreadSummary{
			ThreadID:     row.ID,
			PartnerID:    row.Counterpart(userID),
			ArchivedByMe: row.Archived,
			MutedByMe:    row.Muted,
			CreatedAt:    row.CreatedAt,
		})
	}
	return result, rows.Err()
}

// GetFlags returns the viewer's flags for a thread; a missing row means all
// flags are off.
func (r *ThreadRepo) GetFlags(ctx context.Context, threadID int, userID int) (models.ThreadFlags, error) {
	var flags models.ThreadFlags
	err := r.db.GetContext(ctx, &flags, `SELECT muted, archived, blocked, last_read_at FROM thread_flags WHERE thread_id=$1 AND user_id=$2`, threadID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ThreadFlags{}, nil
	}
	return flags, err
}

// SetMuted upserts the muted flag and returns the stored value.
func (r *ThreadRepo) SetMuted(ctx context.Context, threadID int, userID int, muted bool) (bool, error) {
	return r.setFlag(ctx, "muted", threadID, userID, muted)
}

// SetArchived upserts the archived flag and returns the stored value.
func (r *ThreadRepo) SetArchived(ctx context.Context, threadID int, userID int, archived bool) (bool, error) {
	return r.setFlag(ctx, "archived", threadID, userID, archived)
}

// SetBlocked upserts the blocked flag and returns the stored value.
func (r *ThreadRepo) SetBlocked(ctx context.Context, threadID int, userID int, blocked bool) (bool, error) {
	return r.setFlag(ctx, "blocked", threadID, userID, blocked)
}

func (r *ThreadRepo) setFlag(ctx context.Context, column string, threadID int, userID int, value bool) (bool, error) {
	// column is one of the fixed flag names above, never caller input.
	query := `INSERT INTO thread_flags (thread_id, user_id, ` + column + `) VALUES ($1, $2, $3)
        ON CONFLICT (thread_id, user_id) DO UPDATE SET ` + column + ` = EXCLUDED.` + column + `
        RETURNING ` + column
	var stored bool
	err := r.db.GetContext(ctx, &stored, query, threadID, userID, value)
	return stored, err
}

// MarkRead records that the viewer has seen the thread up to now.
func (r *ThreadRepo) MarkRead(ctx context.Context, threadID int, userID int) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO thread_flags (thread_id, user_id, last_read_at) VALUES ($1, $2, NOW())
        ON CONFLICT (thread_id, user_id) DO UPDATE SET last_read_at = NOW()`, threadID, userID)
	return err
}
