package db

import (
	"context"
	"encoding/json"

	"vendhub/internal/types"
)

// ActivityRepository appends to and reads the vendor activity feed.
// Recording is best-effort from the caller's point of view: workflow code
// logs a failed Record and carries on.
type ActivityRepository struct {
	db DBTX
}

// NewActivityRepository creates a new ActivityRepository backed by the
// given database connection (pool or transaction).
func NewActivityRepository(db DBTX) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Record appends one activity row. Metadata is stored as JSONB; a nil map
// stores NULL.
func (r *ActivityRepository) Record(ctx context.Context, activity *types.Activity) error {
	var metadata []byte
	if activity.Metadata != nil {
		var err error
		metadata, err = json.Marshal(activity.Metadata)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode activity metadata", err)
		}
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO vendor_activities (vendor_id, type, actor_id, metadata, created_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		activity.VendorID,
		activity.Type,
		activity.ActorID,
		metadata,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record activity", err)
	}
	return nil
}

// ListRecent returns the newest activities for a vendor, most recent first.
func (r *ActivityRepository) ListRecent(ctx context.Context, vendorID string, limit int) ([]*types.Activity, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, vendor_id, type, actor_id, metadata, created_at
		 FROM vendor_activities
		 WHERE vendor_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		vendorID,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list activities", err)
	}
	defer rows.Close()

	var activities []*types.Activity
	for rows.Next() {
		var a types.Activity
		var metadata []byte
		if err := rows.Scan(&a.ID, &a.VendorID, &a.Type, &a.ActorID, &metadata, &a.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan activity", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &a.Metadata); err != nil {
				return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to decode activity metadata", err)
			}
		}
		activities = append(activities, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate activities", err)
	}
	return activities, nil
}
