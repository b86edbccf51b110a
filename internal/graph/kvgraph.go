package graph

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/solatis/searchtrace/internal/types"
)

// BackendKV is the registry name of the badger backend.
const BackendKV = "kv"

/*
 * Key layout. Integers are 8-byte big-endian so lexical order is numeric.
 *
 *   n/<node>                   node marker, empty value
 *   p/<node>/<name>            property: {"id","type","value"}
 *   eo/<from>/<type>/<seq>     outgoing edge: <to><tag>
 *   ei/<to>/<type>/<seq>       incoming edge: <from><tag>
 *
 * seq is a per-graph counter, so a prefix scan returns edges in the order
 * they were created. Both halves of an edge share the same seq.
 */

type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

type kvProperty struct {
	ID    int             `json:"id"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// KV stores the graph in a badger database. Writes accumulate in a single
// read-write transaction until Commit; a transaction that grows past
// badger's limit is committed early and continued in a fresh one.
type KV struct {
	db      *badger.DB
	txn     *badger.Txn
	root    NodeID
	nextID  uint64
	edgeSeq uint64
	logger  *zap.Logger
}

// OpenKV opens a badger database in dir, discarding whatever it held.
func OpenKV(ctx context.Context, dir string, logger *zap.Logger) (*KV, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir == "" {
		return nil, errors.New("kv backend requires a directory")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create database directory %s: %w", dir, err)
	}

	opts := badger.DefaultOptions(dir).
		WithSyncWrites(false).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logger.Named("badger").Sugar()})

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	kv := &KV{db: bdb, logger: logger}
	if err := kv.Clear(ctx); err != nil {
		bdb.Close()
		return nil, err
	}
	if err := kv.Commit(ctx); err != nil {
		bdb.Close()
		return nil, err
	}
	return kv, nil
}

func u64(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func nodeKey(n NodeID) []byte {
	return append([]byte("n/"), u64(uint64(n))...)
}

func propPrefix(n NodeID) []byte {
	k := append([]byte("p/"), u64(uint64(n))...)
	return append(k, '/')
}

func propKey(n NodeID, name string) []byte {
	return append(propPrefix(n), name...)
}

func edgePrefix(dir Direction, n NodeID, typ EdgeType) []byte {
	k := []byte("eo/")
	if dir == Incoming {
		k = []byte("ei/")
	}
	k = append(k, u64(uint64(n))...)
	k = append(k, '/')
	k = append(k, typ...)
	return append(k, '/')
}

func edgeValue(other NodeID, tag int) []byte {
	return append(u64(uint64(other)), u64(uint64(int64(tag)))...)
}

func (g *KV) current() *badger.Txn {
	if g.txn == nil {
		g.txn = g.db.NewTransaction(true)
	}
	return g.txn
}

// write applies op to the open transaction, rolling over to a new
// transaction when badger reports the current one is full.
func (g *KV) write(op func(txn *badger.Txn) error) error {
	err := op(g.current())
	if !errors.Is(err, badger.ErrTxnTooBig) {
		return err
	}
	g.logger.Debug("badger transaction full, committing early")
	if err := g.commitTxn(); err != nil {
		return err
	}
	return op(g.current())
}

func (g *KV) exists(n NodeID) (bool, error) {
	_, err := g.current().Get(nodeKey(n))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (g *KV) mustExist(n NodeID) error {
	ok, err := g.exists(n)
	if err != nil {
		return fmt.Errorf("failed to look up node %d: %w", n, err)
	}
	if !ok {
		return fmt.Errorf("%w: %d", types.ErrNodeNotFound, n)
	}
	return nil
}

// scan visits every key/value under prefix in key order. The iterator is
// closed before scan returns.
func (g *KV) scan(prefix []byte, fn func(key, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := g.current().NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), val); err != nil {
			return err
		}
	}
	return nil
}

func (g *KV) Root(ctx context.Context) (NodeID, error) {
	return g.root, nil
}

func (g *KV) CreateNode(ctx context.Context) (NodeID, error) {
	g.nextID++
	n := NodeID(g.nextID)
	err := g.write(func(txn *badger.Txn) error {
		return txn.Set(nodeKey(n), nil)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create node: %w", err)
	}
	return n, nil
}

func (g *KV) CreateEdge(ctx context.Context, from, to NodeID, typ EdgeType, tag int) error {
	if err := g.mustExist(from); err != nil {
		return err
	}
	if err := g.mustExist(to); err != nil {
		return err
	}
	g.edgeSeq++
	seq := u64(g.edgeSeq)
	out := append(edgePrefix(Outgoing, from, typ), seq...)
	in := append(edgePrefix(Incoming, to, typ), seq...)
	err := g.write(func(txn *badger.Txn) error {
		if err := txn.Set(out, edgeValue(to, tag)); err != nil {
			return err
		}
		return txn.Set(in, edgeValue(from, tag))
	})
	if err != nil {
		return fmt.Errorf("failed to create edge: %w", err)
	}
	return nil
}

func (g *KV) DeleteEdge(ctx context.Context, from, to NodeID, typ EdgeType) error {
	prefix := edgePrefix(Outgoing, from, typ)
	var outKey []byte
	errFound := errors.New("found")
	err := g.scan(prefix, func(key, val []byte) error {
		if NodeID(binary.BigEndian.Uint64(val[:8])) == to {
			outKey = key
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return fmt.Errorf("failed to delete edge: %w", err)
	}
	if outKey == nil {
		return fmt.Errorf("%w: %d -%s-> %d", types.ErrEdgeNotFound, from, typ, to)
	}
	seq := outKey[len(prefix):]
	inKey := append(edgePrefix(Incoming, to, typ), seq...)
	err = g.write(func(txn *badger.Txn) error {
		if err := txn.Delete(outKey); err != nil {
			return err
		}
		return txn.Delete(inKey)
	})
	if err != nil {
		return fmt.Errorf("failed to delete edge: %w", err)
	}
	return nil
}

func (g *KV) SetProperty(ctx context.Context, n NodeID, key types.PropertyKey, value any) error {
	if err := g.mustExist(n); err != nil {
		return err
	}
	data, err := types.EncodeValue(key.Type, value)
	if err != nil {
		return fmt.Errorf("property %s: %w", key.Name, err)
	}
	rec, err := json.Marshal(kvProperty{ID: key.ID, Type: key.Type.String(), Value: data})
	if err != nil {
		return fmt.Errorf("property %s: %w", key.Name, err)
	}
	err = g.write(func(txn *badger.Txn) error {
		return txn.Set(propKey(n, key.Name), rec)
	})
	if err != nil {
		return fmt.Errorf("failed to set property %s: %w", key.Name, err)
	}
	return nil
}

func decodeKVProperty(name string, raw []byte) (types.PropertyKey, any, error) {
	var rec kvProperty
	if err := json.Unmarshal(raw, &rec); err != nil {
		return types.PropertyKey{}, nil, fmt.Errorf("property %s: %w", name, err)
	}
	key, err := types.KeyFromTriple(name, rec.ID, rec.Type)
	if err != nil {
		return types.PropertyKey{}, nil, err
	}
	v, err := types.DecodeValue(key.Type, rec.Value)
	if err != nil {
		return types.PropertyKey{}, nil, fmt.Errorf("property %s: %w", name, err)
	}
	return key, v, nil
}

func (g *KV) Property(ctx context.Context, n NodeID, key types.PropertyKey) (any, bool, error) {
	item, err := g.current().Get(propKey(n, key.Name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get property %s: %w", key.Name, err)
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get property %s: %w", key.Name, err)
	}
	stored, v, err := decodeKVProperty(key.Name, raw)
	if err != nil {
		return nil, false, err
	}
	if stored != key {
		return nil, false, nil
	}
	return v, true, nil
}

func (g *KV) RemoveProperty(ctx context.Context, n NodeID, key types.PropertyKey) error {
	err := g.write(func(txn *badger.Txn) error {
		return txn.Delete(propKey(n, key.Name))
	})
	if err != nil {
		return fmt.Errorf("failed to remove property %s: %w", key.Name, err)
	}
	return nil
}

func (g *KV) Properties(ctx context.Context, n NodeID) (map[types.PropertyKey]any, error) {
	if err := g.mustExist(n); err != nil {
		return nil, err
	}
	prefix := propPrefix(n)
	out := make(map[types.PropertyKey]any)
	err := g.scan(prefix, func(k, val []byte) error {
		key, v, err := decodeKVProperty(string(bytes.TrimPrefix(k, prefix)), val)
		if err != nil {
			return err
		}
		out[key] = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	return out, nil
}

func (g *KV) Edges(ctx context.Context, n NodeID, typ EdgeType, dir Direction) ([]Edge, error) {
	if err := g.mustExist(n); err != nil {
		return nil, err
	}
	var edges []Edge
	err := g.scan(edgePrefix(dir, n, typ), func(_, val []byte) error {
		other := NodeID(binary.BigEndian.Uint64(val[:8]))
		tag := int(int64(binary.BigEndian.Uint64(val[8:16])))
		e := Edge{From: n, To: other, Type: typ, Tag: tag}
		if dir == Incoming {
			e.From, e.To = other, n
		}
		edges = append(edges, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	return edges, nil
}

func (g *KV) Traverse(ctx context.Context, start NodeID, spec TraversalSpec, eval Evaluator) ([]NodeID, error) {
	if err := g.mustExist(start); err != nil {
		return nil, err
	}
	return Walk(ctx, g, start, spec, eval)
}

func (g *KV) commitTxn() error {
	if g.txn == nil {
		return nil
	}
	txn := g.txn
	g.txn = nil
	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit badger transaction: %w", err)
	}
	return nil
}

func (g *KV) Commit(ctx context.Context) error {
	return g.commitTxn()
}

func (g *KV) Clear(ctx context.Context) error {
	if g.txn != nil {
		g.txn.Discard()
		g.txn = nil
	}
	if err := g.db.DropAll(); err != nil {
		return fmt.Errorf("failed to clear badger database: %w", err)
	}
	g.nextID = 0
	g.edgeSeq = 0
	root, err := g.CreateNode(ctx)
	if err != nil {
		return fmt.Errorf("failed to create root marker: %w", err)
	}
	g.root = root
	return nil
}

func (g *KV) Close() error {
	var result *multierror.Error
	if err := g.commitTxn(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := g.db.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close badger database: %w", err))
	}
	return result.ErrorOrNil()
}
