package embedding

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"go.etcd.io/bbolt"
)

var bucketEmbeddings = []byte("embeddings")

// BoltStore is a Store backed by a bbolt file. Vectors are stored as
// little-endian float64 arrays.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens or creates the cache file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open embedding cache %q: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEmbeddings)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init embedding cache %q: %w", path, err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(key string) (Vector, bool, error) {
	var v Vector
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketEmbeddings).Get([]byte(key))
		if data == nil {
			return nil
		}
		decoded, err := decodeVector(data)
		if err != nil {
			return fmt.Errorf("key %s: %w", key, err)
		}
		v = decoded
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return v, v != nil, nil
}

func (s *BoltStore) Put(key string, v Vector) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEmbeddings).Put([]byte(key), encodeVector(v))
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func encodeVector(v Vector) []byte {
	buf := make([]byte, 8*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(x))
	}
	return buf
}

func decodeVector(data []byte) (Vector, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("corrupt vector of %d bytes", len(data))
	}
	v := make(Vector, len(data)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*i:]))
	}
	return v, nil
}
