package kvdb

import (
	"github.com/inconshreveable/log15"
)

var log = log15.New("module", "kvdb")

// KeyValueDB backs the registry's durable record tables. Bolt is the
// default; mongo serves multi-node deployments.
type KeyValueDB interface {
	Put(bucket, key string, value []byte) (err error)

	Get(bucket, key string) (data []byte, err error)

	GetAllKey(bucket string) (keys []string, err error)

	Delete(bucket, key string) (err error)

	Close() (err error)

	Type() string

	Exist(bucket, key string) bool
}
