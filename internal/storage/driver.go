package storage

import (
	"database/sql"

	"github.com/mattn/go-sqlite3"

	"github.com/hyperjump/shitsumon/internal/models"
	"github.com/hyperjump/shitsumon/internal/vector"
)

// DriverName is the database/sql driver registered by this package: go-sqlite3 with
// a vec_distance_cosine(a, b) function installed on every connection.
const DriverName = "sqlite3_shitsumon"

// vecExtension is set when the sqlite-vec extension is compiled in (build tag sqlite_vec).
var vecExtension bool

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("vec_distance_cosine", vecDistanceCosine, true)
		},
	})
}

// vecDistanceCosine compares two little-endian float32 blobs. It yields NULL instead of
// failing when either side is NULL, zero-norm or of a different dimension, so that one
// bad row cannot abort a whole similarity scan.
func vecDistanceCosine(a, b interface{}) (interface{}, error) {
	ab, ok := a.([]byte)
	if !ok || len(ab) == 0 {
		return nil, nil
	}
	bb, ok := b.([]byte)
	if !ok || len(bb) == 0 {
		return nil, nil
	}
	av, err := models.DecodeVector(ab)
	if err != nil {
		return nil, err
	}
	bv, err := models.DecodeVector(bb)
	if err != nil {
		return nil, err
	}
	d, err := vector.CosineDistance(av, bv)
	if err != nil {
		return nil, nil
	}
	return d, nil
}
