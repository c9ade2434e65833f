package capturesvc

import (
	"time"

	"github.com/dgraph-io/badger"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

// Registry tracks the open input devices by path. It is mutated by the
// capture loop on device add/remove and snapshotted by the grab
// coordinator.
type Registry struct {
	log     *zap.Logger
	db      *badger.DB
	now     func() time.Time
	devices *xsync.MapOf[string, DeviceHandle]
}

// NewRegistry creates a registry. db may be nil; when set, the first time a
// device path is seen is recorded persistently.
func NewRegistry(log *zap.Logger, db *badger.DB, now func() time.Time) *Registry {
	return &Registry{
		log:     log,
		db:      db,
		now:     now,
		devices: xsync.NewMapOf[string, DeviceHandle](),
	}
}

func (r *Registry) Add(handle DeviceHandle) {
	r.devices.Store(handle.Path(), handle)
	r.recordFirstSeen(handle.Path())
}

func (r *Registry) Remove(path string) {
	r.devices.Delete(path)
}

// Snapshot returns the current device set. The slice is detached from the
// registry; concurrent add/remove does not affect it.
func (r *Registry) Snapshot() []DeviceHandle {
	var handles []DeviceHandle
	r.devices.Range(func(_ string, h DeviceHandle) bool {
		handles = append(handles, h)
		return true
	})
	return handles
}

func (r *Registry) Len() int {
	return r.devices.Size()
}

func (r *Registry) recordFirstSeen(path string) {
	if r.db == nil {
		return
	}
	key := append([]byte("device/first-seen/"), path...)
	err := r.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, []byte(r.now().UTC().Format(time.RFC3339)))
	})
	if err != nil {
		r.log.Warn("Failed to record device first-seen time", zap.String("path", path), zap.Error(err))
	}
}
