// internal/model/replica_object.go
package model

import "time"

// ReplicaObject describes one named blob held by a remote store.
type ReplicaObject struct {
	ID        string    `db:"id" json:"id"`
	Parent    string    `db:"parent" json:"parent"`
	Name      string    `db:"name" json:"name"`
	Size      int64     `db:"size" json:"size"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
