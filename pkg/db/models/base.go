package models

import "github.com/google/uuid"

// ensureID assigns a v4 id when the caller left it empty, so inserts also
// work on databases without gen_random_uuid().
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
