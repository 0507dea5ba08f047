package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"companion_gateway/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUserNotFound = errors.New("user not found")

const userColumns = `uid, account, device_type, device_id, push_registration_id,
	nickname, gender, avatar, birthday, age, create_ts, update_ts,
	is_online, is_deleted, delete_reason`

// UserRepository reads and writes user profiles across the primary and
// shadow tables. A recreated account (its old row soft-deleted in primary)
// lives in the shadow table, which wins every lookup while it exists.
type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.UID,
		&u.Account,
		&u.DeviceType,
		&u.DeviceID,
		&u.PushRegistrationID,
		&u.Nickname,
		&u.Gender,
		&u.Avatar,
		&u.Birthday,
		&u.Age,
		&u.CreateTS,
		&u.UpdateTS,
		&u.IsOnline,
		&u.IsDeleted,
		&u.DeleteReason,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// IsRecreatedByAccount reports whether a shadow row exists for the account.
func (r *UserRepository) IsRecreatedByAccount(ctx context.Context, account string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users_shadow WHERE account = $1)`, account,
	).Scan(&exists)
	return exists, err
}

// IsRecreatedByUID reports whether a shadow row exists for the uid.
func (r *UserRepository) IsRecreatedByUID(ctx context.Context, uid string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users_shadow WHERE uid = $1)`, uid,
	).Scan(&exists)
	return exists, err
}

// WasDeleted reports whether the primary row for account is soft-deleted,
// which routes a re-registration into the shadow table.
func (r *UserRepository) WasDeleted(ctx context.Context, account string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE account = $1 AND is_deleted)`, account,
	).Scan(&exists)
	return exists, err
}

// GetByAccount resolves shadow first, then primary.
func (r *UserRepository) GetByAccount(ctx context.Context, account string) (*domain.User, error) {
	recreated, err := r.IsRecreatedByAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	table := "users"
	if recreated {
		table = "users_shadow"
	}
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE account = $1 AND NOT is_deleted`, userColumns, table),
		account,
	)
	return scanUser(row)
}

// GetByUID resolves shadow first, then primary.
func (r *UserRepository) GetByUID(ctx context.Context, uid string) (*domain.User, error) {
	recreated, err := r.IsRecreatedByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	table := "users"
	if recreated {
		table = "users_shadow"
	}
	row := r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE uid = $1`, userColumns, table),
		uid,
	)
	return scanUser(row)
}

// UpsertAccount creates or refreshes the user row for a freshly verified
// account. A recreated account writes to the shadow table.
func (r *UserRepository) UpsertAccount(ctx context.Context, u *domain.User, recreate bool) error {
	now := time.Now().Unix()
	if u.CreateTS == 0 {
		u.CreateTS = now
	}
	u.UpdateTS = now

	table := "users"
	if recreate {
		table = "users_shadow"
	}
	_, err := r.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (uid, account, device_type, device_id, push_registration_id,
			nickname, gender, avatar, birthday, age, create_ts, update_ts, is_online, is_deleted, delete_reason)
		 VALUES ($1, $2, $3, $4, $5, '', 0, '', '', 0, $6, $7, FALSE, FALSE, '')
		 ON CONFLICT (uid) DO UPDATE SET
			device_type = EXCLUDED.device_type,
			device_id = EXCLUDED.device_id,
			push_registration_id = EXCLUDED.push_registration_id,
			update_ts = EXCLUDED.update_ts`, table),
		u.UID, u.Account, u.DeviceType, u.DeviceID, u.PushRegistrationID, u.CreateTS, u.UpdateTS,
	)
	return err
}

// GetByUIDs resolves a batch of uids into profiles, shadow rows winning over
// primary rows. Unknown uids are simply absent from the result.
func (r *UserRepository) GetByUIDs(ctx context.Context, uids []string) (map[string]*domain.User, error) {
	if len(uids) == 0 {
		return map[string]*domain.User{}, nil
	}
	out := make(map[string]*domain.User, len(uids))
	for _, table := range []string{"users", "users_shadow"} {
		rows, err := r.db.Query(ctx,
			fmt.Sprintf(`SELECT %s FROM %s WHERE uid = ANY($1) AND NOT is_deleted`, userColumns, table),
			uids,
		)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[u.UID] = u
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SetProfile updates the display profile. Age derives from the birthday year.
func (r *UserRepository) SetProfile(ctx context.Context, uid, nickname string, gender int, avatar, birthday string) (int64, error) {
	age := 0
	if len(birthday) >= 4 {
		var year int
		if _, err := fmt.Sscanf(birthday[:4], "%d", &year); err == nil && year > 0 {
			age = time.Now().Year() - year
		}
	}
	updateTS := time.Now().Unix()

	recreated, err := r.IsRecreatedByUID(ctx, uid)
	if err != nil {
		return 0, err
	}
	table := "users"
	if recreated {
		table = "users_shadow"
	}
	tag, err := r.db.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET nickname = $1, gender = $2, avatar = $3, birthday = $4, age = $5, update_ts = $6
		 WHERE uid = $7 AND NOT is_deleted`, table),
		nickname, gender, avatar, birthday, age, updateTS, uid,
	)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrUserNotFound
	}
	return updateTS, nil
}

// SetOnline flips the platform-level online flag.
func (r *UserRepository) SetOnline(ctx context.Context, account string, online bool) error {
	recreated, err := r.IsRecreatedByAccount(ctx, account)
	if err != nil {
		return err
	}
	table := "users"
	if recreated {
		table = "users_shadow"
	}
	_, err = r.db.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET is_online = $1, update_ts = $2 WHERE account = $3 AND NOT is_deleted`, table),
		online, time.Now().Unix(), account,
	)
	return err
}

// DeviceIDByAccount returns the stored device binding for the account.
func (r *UserRepository) DeviceIDByAccount(ctx context.Context, account string) (string, error) {
	u, err := r.GetByAccount(ctx, account)
	if err != nil {
		return "", err
	}
	return u.DeviceID, nil
}

// CountUsers counts primary-table users (for the total-user cache key).
func (r *UserRepository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
