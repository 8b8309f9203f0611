//go:build sqlite_vec && cgo

package storage

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Auto-load sqlite-vec into every go-sqlite3 connection. The connect hook's
	// vec_distance_cosine still takes precedence so NULL handling stays the same.
	vec.Auto()
	vecExtension = true
}
