// package repositories provides persistence layer implementations for the reelx local store.
package repositories

import (
	"database/sql"
	"fmt"
)

// requireRows fails when result touched no rows, naming the missing entity.
func requireRows(result sql.Result, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
