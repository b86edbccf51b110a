package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/solatis/searchtrace/internal/core/db"
	"github.com/solatis/searchtrace/internal/types"
)

// BackendPersistent is the registry name of the SQL backend.
const BackendPersistent = "persistent-graph"

type edgeRow struct {
	Src  int64  `db:"src_id"`
	Dst  int64  `db:"dst_id"`
	Type string `db:"edge_type"`
	Tag  int    `db:"tag"`
}

func (r edgeRow) edge() Edge {
	return Edge{From: NodeID(r.Src), To: NodeID(r.Dst), Type: EdgeType(r.Type), Tag: r.Tag}
}

type propertyRow struct {
	Name  string `db:"name"`
	ID    int    `db:"prop_id"`
	Tag   string `db:"type_tag"`
	Value string `db:"value"`
}

func (r propertyRow) decode() (types.PropertyKey, any, error) {
	key, err := types.KeyFromTriple(r.Name, r.ID, r.Tag)
	if err != nil {
		return types.PropertyKey{}, nil, err
	}
	v, err := types.DecodeValue(key.Type, []byte(r.Value))
	if err != nil {
		return types.PropertyKey{}, nil, fmt.Errorf("property %s: %w", r.Name, err)
	}
	return key, v, nil
}

// SQL stores the graph in three tables (trace_nodes, trace_edges,
// trace_properties) through sqlx. Edge order is the autoincrement edge id.
// Properties are (name, id, type) triples with JSON text values.
//
// All statements run inside one transaction that is opened on first use and
// closed by Commit, so reads observe the writer's uncommitted state.
type SQL struct {
	conn    *sqlx.DB
	queries *db.Queries
	tx      *sqlx.Tx
	root    NodeID
	logger  *zap.Logger
}

// OpenSQL connects to dbURL, applies migrations and clears prior trace contents.
func OpenSQL(ctx context.Context, dbURL string, logger *zap.Logger) (*SQL, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := db.Open(ctx, dbURL)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate trace schema: %w", err)
	}
	queries, err := db.LoadQueries(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	s := &SQL{conn: conn, queries: queries, logger: logger}
	if err := s.Clear(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.Commit(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Debug("persistent graph opened", zap.String("driver", conn.DriverName()))
	return s, nil
}

// q returns the query set bound to the open transaction, beginning one if needed.
func (s *SQL) q(ctx context.Context) (*db.Queries, error) {
	if s.tx == nil {
		tx, err := s.conn.BeginTxx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		s.tx = tx
	}
	return s.queries.On(s.tx), nil
}

func (s *SQL) Root(ctx context.Context) (NodeID, error) {
	return s.root, nil
}

func (s *SQL) CreateNode(ctx context.Context) (NodeID, error) {
	q, err := s.q(ctx)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := q.Get(ctx, "create-node", &id); err != nil {
		return 0, fmt.Errorf("failed to create node: %w", err)
	}
	return NodeID(id), nil
}

func (s *SQL) CreateEdge(ctx context.Context, from, to NodeID, typ EdgeType, tag int) error {
	q, err := s.q(ctx)
	if err != nil {
		return err
	}
	want := 2
	if from == to {
		want = 1
	}
	var n int
	if err := q.Get(ctx, "count-nodes", &n, int64(from), int64(to)); err != nil {
		return fmt.Errorf("failed to check edge endpoints: %w", err)
	}
	if n != want {
		return fmt.Errorf("%w: edge %d -> %d", types.ErrNodeNotFound, from, to)
	}
	if _, err := q.Exec(ctx, "create-edge", int64(from), int64(to), string(typ), tag); err != nil {
		return fmt.Errorf("failed to create edge: %w", err)
	}
	return nil
}

func (s *SQL) DeleteEdge(ctx context.Context, from, to NodeID, typ EdgeType) error {
	q, err := s.q(ctx)
	if err != nil {
		return err
	}
	res, err := q.Exec(ctx, "delete-edge", int64(from), int64(to), string(typ))
	if err != nil {
		return fmt.Errorf("failed to delete edge: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete edge: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d -%s-> %d", types.ErrEdgeNotFound, from, typ, to)
	}
	return nil
}

func (s *SQL) SetProperty(ctx context.Context, n NodeID, key types.PropertyKey, value any) error {
	data, err := types.EncodeValue(key.Type, value)
	if err != nil {
		return fmt.Errorf("property %s: %w", key.Name, err)
	}
	q, err := s.q(ctx)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, "upsert-property", int64(n), key.Name, key.ID, key.Type.String(), string(data)); err != nil {
		return fmt.Errorf("failed to set property %s: %w", key.Name, err)
	}
	return nil
}

func (s *SQL) Property(ctx context.Context, n NodeID, key types.PropertyKey) (any, bool, error) {
	q, err := s.q(ctx)
	if err != nil {
		return nil, false, err
	}
	var row propertyRow
	if err := q.Get(ctx, "get-property", &row, int64(n), key.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get property %s: %w", key.Name, err)
	}
	stored, v, err := row.decode()
	if err != nil {
		return nil, false, err
	}
	if stored != key {
		return nil, false, nil
	}
	return v, true, nil
}

func (s *SQL) RemoveProperty(ctx context.Context, n NodeID, key types.PropertyKey) error {
	q, err := s.q(ctx)
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, "delete-property", int64(n), key.Name); err != nil {
		return fmt.Errorf("failed to remove property %s: %w", key.Name, err)
	}
	return nil
}

func (s *SQL) Properties(ctx context.Context, n NodeID) (map[types.PropertyKey]any, error) {
	q, err := s.q(ctx)
	if err != nil {
		return nil, err
	}
	var rows []propertyRow
	if err := q.Select(ctx, "list-properties", &rows, int64(n)); err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	out := make(map[types.PropertyKey]any, len(rows))
	for _, r := range rows {
		key, v, err := r.decode()
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

func (s *SQL) Edges(ctx context.Context, n NodeID, typ EdgeType, dir Direction) ([]Edge, error) {
	q, err := s.q(ctx)
	if err != nil {
		return nil, err
	}
	name := "list-out-edges"
	if dir == Incoming {
		name = "list-in-edges"
	}
	var rows []edgeRow
	if err := q.Select(ctx, name, &rows, int64(n), string(typ)); err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	edges := make([]Edge, len(rows))
	for i, r := range rows {
		edges[i] = r.edge()
	}
	return edges, nil
}

func (s *SQL) Traverse(ctx context.Context, start NodeID, spec TraversalSpec, eval Evaluator) ([]NodeID, error) {
	return Walk(ctx, s, start, spec, eval)
}

func (s *SQL) Commit(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trace transaction: %w", err)
	}
	return nil
}

func (s *SQL) Clear(ctx context.Context) error {
	q, err := s.q(ctx)
	if err != nil {
		return err
	}
	for _, name := range []string{"clear-properties", "clear-edges", "clear-nodes"} {
		if _, err := q.Exec(ctx, name); err != nil {
			return fmt.Errorf("failed to clear trace (%s): %w", name, err)
		}
	}
	var root int64
	if err := q.Get(ctx, "create-root", &root); err != nil {
		return fmt.Errorf("failed to create root marker: %w", err)
	}
	s.root = NodeID(root)
	return nil
}

func (s *SQL) Close() error {
	var result *multierror.Error
	if err := s.Commit(context.Background()); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.conn.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close database: %w", err))
	}
	return result.ErrorOrNil()
}
