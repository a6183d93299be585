package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/sakif/cmdshift-learn/internal/apperror"
	"github.com/sakif/cmdshift-learn/internal/model"
	"github.com/sakif/cmdshift-learn/internal/repository"
)

// compile-time check that *DB implements repository.ProfileRepository
var _ repository.ProfileRepository = (*DB)(nil)

// GetProfile loads the profile for externalUID.
// Returns apperror.ErrNotFound if no profile exists.
func (db *DB) GetProfile(ctx context.Context, externalUID string) (*model.Profile, error) {
	return db.getProfile(ctx, db.conn, externalUID)
}

func (db *DB) getProfile(ctx context.Context, q queryer, externalUID string) (*model.Profile, error) {
	var data string
	err := q.QueryRowContext(ctx,
		`SELECT data FROM profiles WHERE external_uid = ?`,
		externalUID,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("profile", externalUID)
		}
		return nil, fmt.Errorf("sqlite: getting profile %s: %w", externalUID, err)
	}

	var p model.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("sqlite: decoding profile %s: %w", externalUID, err)
	}
	return &p, nil
}

// CreateProfile inserts a new profile with a fresh xid.
// Returns apperror.ErrConflict if the uid already has a profile.
func (db *DB) CreateProfile(ctx context.Context, externalUID, email string) (*model.Profile, error) {
	unlock := db.locks.Lock(externalUID)
	defer unlock()

	_, err := db.getProfile(ctx, db.conn, externalUID)
	if err == nil {
		return nil, apperror.Conflict("profile", externalUID)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	p := model.NewProfile(xid.New().String(), externalUID, email, db.now())
	if err := db.insertProfile(ctx, db.conn, p); err != nil {
		return nil, err
	}
	return p, nil
}

// PutProfile overwrites the stored row for profile.ExternalUID, inserting it
// if it does not exist, and refreshes UpdatedAt.
func (db *DB) PutProfile(ctx context.Context, profile *model.Profile) error {
	unlock := db.locks.Lock(profile.ExternalUID)
	defer unlock()

	profile.UpdatedAt = db.now()
	if profile.ID == "" {
		profile.ID = xid.New().String()
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("sqlite: encoding profile %s: %w", profile.ExternalUID, err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO profiles (id, external_uid, email, xp, level, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(external_uid) DO UPDATE SET
			email = excluded.email,
			xp = excluded.xp,
			level = excluded.level,
			data = excluded.data,
			updated_at = excluded.updated_at`,
		profile.ID,
		profile.ExternalUID,
		profile.Email,
		profile.XP,
		profile.Level,
		string(data),
		toMillis(profile.CreatedAt),
		toMillis(profile.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: putting profile %s: %w", profile.ExternalUID, err)
	}
	return nil
}

// UpdateProfile performs a read-modify-write of one profile inside a
// transaction while holding the uid's lock. fn receives the decoded row; if it
// returns an error the transaction is rolled back and the error returned as is.
func (db *DB) UpdateProfile(ctx context.Context, externalUID string, fn func(*model.Profile) error) (*model.Profile, error) {
	unlock := db.locks.Lock(externalUID)
	defer unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning update of %s: %w", externalUID, err)
	}
	defer tx.Rollback() // no-op after Commit

	p, err := db.getProfile(ctx, tx, externalUID)
	if err != nil {
		return nil, err
	}

	if err := fn(p); err != nil {
		return nil, err
	}

	p.UpdatedAt = db.now()
	if err := db.updateProfile(ctx, tx, p); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing update of %s: %w", externalUID, err)
	}
	return p, nil
}

// GetOrCreateProfile returns the stored profile, or creates one and runs init
// on it before the insert.
func (db *DB) GetOrCreateProfile(ctx context.Context, externalUID, email string, init func(*model.Profile) error) (*model.Profile, bool, error) {
	unlock := db.locks.Lock(externalUID)
	defer unlock()

	existing, err := db.getProfile(ctx, db.conn, externalUID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, false, err
	}

	p := model.NewProfile(xid.New().String(), externalUID, email, db.now())
	if init != nil {
		if err := init(p); err != nil {
			return nil, false, err
		}
	}
	if err := db.insertProfile(ctx, db.conn, p); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

func (db *DB) insertProfile(ctx context.Context, q queryer, p *model.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("sqlite: encoding profile %s: %w", p.ExternalUID, err)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO profiles (id, external_uid, email, xp, level, data, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.ExternalUID,
		p.Email,
		p.XP,
		p.Level,
		string(data),
		toMillis(p.CreatedAt),
		toMillis(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting profile %s: %w", p.ExternalUID, err)
	}
	return nil
}

func (db *DB) updateProfile(ctx context.Context, q queryer, p *model.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("sqlite: encoding profile %s: %w", p.ExternalUID, err)
	}

	_, err = q.ExecContext(ctx,
		`UPDATE profiles SET email = ?, xp = ?, level = ?, data = ?, updated_at = ?
		 WHERE external_uid = ?`,
		p.Email,
		p.XP,
		p.Level,
		string(data),
		toMillis(p.UpdatedAt),
		p.ExternalUID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile %s: %w", p.ExternalUID, err)
	}
	return nil
}
