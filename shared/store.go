package shared

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/namespace"
	"github.com/ipfs/go-datastore/query"
	dssync "github.com/ipfs/go-datastore/sync"
	levelds "github.com/ipfs/go-ds-leveldb"
	logging "github.com/ipfs/go-log/v2"
	ldbopts "github.com/syndtr/goleveldb/leveldb/opt"
	"golang.org/x/xerrors"

	"github.com/filecoin-project/pickaxe-agent/lib/bus"
)

var log = logging.Logger("shared")

// Operation names accepted by ApplySub. The store is an observed-remove map
// of multi-value registers; only register writes nested in a map update are
// supported.
const (
	ContainerORMap = "ormap"
	OpApplySub     = "applySub"
	RegisterMVReg  = "mvreg"
	OpWrite        = "write"
)

const evtStateChanged = "state changed"

var (
	ErrUnsupportedOp = xerrors.New("unsupported store operation")
	ErrInvalidKey    = xerrors.New("invalid key")
)

// RawState is the un-projected content of a collection: key -> field -> the
// values currently held by the field's register.
type RawState map[string]map[string][]string

// DSStore keeps one collection of the shared state in a datastore. Each
// register lives under /<key>/<field> as a JSON array of its values.
type DSStore struct {
	base datastore.Datastore
	ds   datastore.Datastore

	lk     sync.Mutex
	events *bus.Bus
}

func NewDSStore(ds datastore.Datastore, collection string) *DSStore {
	return &DSStore{
		base:   ds,
		ds:     namespace.Wrap(ds, datastore.NewKey(collection)),
		events: bus.New(),
	}
}

// NewMemory returns a store that lives only as long as the process.
func NewMemory(collection string) *DSStore {
	return NewDSStore(dssync.MutexWrap(datastore.NewMapDatastore()), collection)
}

// OpenLevelDB opens (or creates) a leveldb backed store at path.
func OpenLevelDB(path string, collection string) (*DSStore, error) {
	ds, err := levelds.NewDatastore(path, &levelds.Options{
		Compression: ldbopts.NoCompression,
		NoSync:      false,
		Strict:      ldbopts.StrictAll,
		ReadOnly:    false,
	})
	if err != nil {
		return nil, xerrors.Errorf("open leveldb: %w", err)
	}

	return NewDSStore(ds, collection), nil
}

// Value returns a copy of the whole collection.
func (s *DSStore) Value(ctx context.Context) (RawState, error) {
	res, err := s.ds.Query(ctx, query.Query{})
	if err != nil {
		return nil, xerrors.Errorf("querying collection: %w", err)
	}

	entries, err := res.Rest()
	if err != nil {
		return nil, xerrors.Errorf("reading collection: %w", err)
	}

	out := RawState{}
	for _, e := range entries {
		parts := datastore.RawKey(e.Key).Namespaces()
		if len(parts) != 2 {
			log.Warnw("skipping malformed register key", "key", e.Key)
			continue
		}

		var vals []string
		if err := json.Unmarshal(e.Value, &vals); err != nil {
			return nil, xerrors.Errorf("decoding register %s: %w", e.Key, err)
		}

		fields, ok := out[parts[0]]
		if !ok {
			fields = map[string][]string{}
			out[parts[0]] = fields
		}
		fields[parts[1]] = vals
	}

	return out, nil
}

// ApplySub applies op to the register at field inside the map entry key.
// The only supported shape is
//
//	ApplySub(ctx, key, "ormap", "applySub", field, "mvreg", "write", value)
//
// A write replaces every value the register currently holds.
func (s *DSStore) ApplySub(ctx context.Context, key, containerType, containerOp, field, registerType, registerOp, value string) error {
	if containerType != ContainerORMap || containerOp != OpApplySub {
		return xerrors.Errorf("%s.%s: %w", containerType, containerOp, ErrUnsupportedOp)
	}
	if registerType != RegisterMVReg || registerOp != OpWrite {
		return xerrors.Errorf("%s.%s: %w", registerType, registerOp, ErrUnsupportedOp)
	}

	k, err := registerKey(key, field)
	if err != nil {
		return err
	}

	b, err := json.Marshal([]string{value})
	if err != nil {
		return xerrors.Errorf("encoding register %s: %w", k, err)
	}

	s.lk.Lock()
	err = s.ds.Put(ctx, k, b)
	s.lk.Unlock()
	if err != nil {
		return xerrors.Errorf("writing register %s: %w", k, err)
	}

	s.changed()
	return nil
}

// Merge adds a value written concurrently elsewhere to the register at
// key/field. The register then holds every distinct value, oldest first.
func (s *DSStore) Merge(ctx context.Context, key, field, value string) error {
	k, err := registerKey(key, field)
	if err != nil {
		return err
	}

	s.lk.Lock()
	err = s.merge(ctx, k, value)
	s.lk.Unlock()
	if err != nil {
		return err
	}

	s.changed()
	return nil
}

func (s *DSStore) merge(ctx context.Context, k datastore.Key, value string) error {
	var vals []string

	cur, err := s.ds.Get(ctx, k)
	switch {
	case xerrors.Is(err, datastore.ErrNotFound):
	case err != nil:
		return xerrors.Errorf("reading register %s: %w", k, err)
	default:
		if err := json.Unmarshal(cur, &vals); err != nil {
			return xerrors.Errorf("decoding register %s: %w", k, err)
		}
	}

	for _, v := range vals {
		if v == value {
			return nil
		}
	}

	b, err := json.Marshal(append(vals, value))
	if err != nil {
		return xerrors.Errorf("encoding register %s: %w", k, err)
	}
	if err := s.ds.Put(ctx, k, b); err != nil {
		return xerrors.Errorf("writing register %s: %w", k, err)
	}
	return nil
}

// OnChange calls cb after every change to the collection. cb runs on the
// writer's goroutine and must not block.
func (s *DSStore) OnChange(cb func()) bus.Unsubscribe {
	return s.events.On(evtStateChanged, func(interface{}) {
		cb()
	})
}

func (s *DSStore) changed() {
	if err := s.events.Emit(evtStateChanged, nil); err != nil {
		log.Errorw("notifying state change", "error", err)
	}
}

func (s *DSStore) Close() error {
	return s.base.Close()
}

func registerKey(key, field string) (datastore.Key, error) {
	if key == "" || key == "." || key == ".." || strings.Contains(key, "/") {
		return datastore.Key{}, xerrors.Errorf("%q: %w", key, ErrInvalidKey)
	}
	if field == "" || field == "." || field == ".." || strings.Contains(field, "/") {
		return datastore.Key{}, xerrors.Errorf("field %q: %w", field, ErrInvalidKey)
	}
	return datastore.KeyWithNamespaces([]string{key, field}), nil
}
