// Package activity appends audit rows for every mutating operation. The log
// is append-only; rows are read back newest first.
package activity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nexboard/internal/domain"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

// Record inserts an activity row inside the caller's transaction so the
// audit entry commits atomically with the mutation it describes.
func (w Writer) Record(ctx context.Context, tx *sql.Tx, userID, action, targetID string, targetType domain.TargetType) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	id := fmt.Sprintf("log-%s", uuid.NewString())
	_, err := tx.ExecContext(ctx, `INSERT INTO activity_log(id,user_id,action,target_id,target_type,ts) VALUES (?,?,?,?,?,?)`,
		id, userID, action, targetID, string(targetType), ts)
	return err
}
