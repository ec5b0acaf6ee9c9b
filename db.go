package swfbmp

import (
	"crypto/sha1"
	"database/sql"
	"fmt"
	"io/ioutil"

	"github.com/bodgit/swfbmp/lossless"
	_ "github.com/mattn/go-sqlite3"
)

// BitmapDB caches decoded bitmaps keyed by the SHA-1 of their payload.
type BitmapDB struct {
	db *sql.DB
}

// NewBitmapDB opens or creates the sqlite database in file.
func NewBitmapDB(file string) (*BitmapDB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", file))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)

	if _, err = db.Exec("CREATE TABLE IF NOT EXISTS bitmap (id INTEGER PRIMARY KEY NOT NULL, sha1 TEXT NOT NULL UNIQUE, width INTEGER NOT NULL, height INTEGER NOT NULL, data BLOB NOT NULL)"); err != nil {
		db.Close()
		return nil, err
	}

	return &BitmapDB{
		db: db,
	}, nil
}

// Close closes the underlying database.
func (db *BitmapDB) Close() error {
	return db.db.Close()
}

func payloadSHA1(payload []byte) string {
	return fmt.Sprintf("%X", sha1.Sum(payload))
}

// Import decodes the payload in file and stores the result, returning the
// row id. Importing the same payload twice returns the existing row.
func (db *BitmapDB) Import(file string) (int64, error) {
	payload, err := ioutil.ReadFile(file)
	if err != nil {
		return 0, err
	}

	id, _, err := db.add(payload)
	return id, err
}

// add stores the decoded payload unless it is already present. The
// bitmap is only returned if the payload had to be decoded.
func (db *BitmapDB) add(payload []byte) (int64, *lossless.Bitmap, error) {
	sha := payloadSHA1(payload)

	var id int64
	switch err := db.db.QueryRow("SELECT id FROM bitmap WHERE sha1 = ?", sha).Scan(&id); err {
	case sql.ErrNoRows:
		b, err := lossless.Decode(payload)
		if err != nil {
			return 0, nil, err
		}
		result, err := db.db.Exec("INSERT OR IGNORE INTO bitmap (sha1, width, height, data) VALUES (?, ?, ?, ?)", sha, b.Meta.Width, b.Meta.Height, b.Data)
		if err != nil {
			return 0, nil, err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, nil, err
		}
		// Somebody else inserted the same payload in the meantime
		if n == 0 {
			if err := db.db.QueryRow("SELECT id FROM bitmap WHERE sha1 = ?", sha).Scan(&id); err != nil {
				return 0, nil, err
			}
			return id, b, nil
		}
		id, err = result.LastInsertId()
		return id, b, err
	case nil:
		return id, nil, nil
	default:
		return 0, nil, err
	}
}

// FindBySHA1 returns the cached bitmap for the payload with the given
// SHA-1, or nil if there isn't one.
func (db *BitmapDB) FindBySHA1(sha string) (*lossless.Bitmap, error) {
	var width, height int
	var data []byte
	switch err := db.db.QueryRow("SELECT width, height, data FROM bitmap WHERE sha1 = ?", sha).Scan(&width, &height, &data); err {
	case sql.ErrNoRows:
		return nil, nil
	case nil:
		return &lossless.Bitmap{
			Meta: lossless.NewMeta(width, height),
			Data: data,
		}, nil
	default:
		return nil, err
	}
}

// Length returns the number of cached bitmaps.
func (db *BitmapDB) Length() (int, error) {
	var n int
	if err := db.db.QueryRow("SELECT COUNT(*) FROM bitmap").Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
