package backend

import (
	"immo/internal/core"
	"immo/internal/store"
)

func memoryDefaults() store.Snapshot {
	return store.Snapshot{Version: store.SnapshotVersion, Categories: core.DefaultCategories()}
}
