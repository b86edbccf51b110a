package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/searchtrace/internal/types"
)

// BackendRemote is the registry name of the gRPC client backend.
const BackendRemote = "remote"

// APIKeyHeader is the metadata key carrying the API key.
const APIKeyHeader = "x-api-key"

// Remote is a Graph whose storage lives in a graph service reached over
// gRPC. Each primitive is one unary call; traversal runs locally over
// ListEdges so evaluators stay in the caller's process.
type Remote struct {
	conn    *grpc.ClientConn
	apiKey  string
	timeout time.Duration
	logger  *zap.Logger
}

// DialRemote connects to a graph service at addr.
func DialRemote(ctx context.Context, addr, apiKey string, timeout time.Duration, logger *zap.Logger) (*Remote, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if addr == "" {
		return nil, errors.New("remote backend requires an address")
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to dial graph service %s: %w", addr, err)
	}
	logger.Debug("remote graph client created", zap.String("address", addr))
	return &Remote{conn: conn, apiKey: apiKey, timeout: timeout, logger: logger}, nil
}

func (r *Remote) call(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", method, err)
	}
	if r.apiKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, APIKeyHeader, r.apiKey)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	out := new(structpb.Struct)
	if err := r.conn.Invoke(ctx, FullMethod(method), in, out); err != nil {
		return nil, fromStatus(method, err)
	}
	return out, nil
}

// fromStatus maps a gRPC status back onto the sentinel errors the server
// translated it from.
func fromStatus(method string, err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("%s: %w", method, err)
	}
	msg := st.Message()
	switch st.Code() {
	case codes.NotFound:
		if strings.Contains(msg, types.ErrEdgeNotFound.Error()) {
			return fmt.Errorf("%s: %w: %s", method, types.ErrEdgeNotFound, msg)
		}
		return fmt.Errorf("%s: %w: %s", method, types.ErrNodeNotFound, msg)
	case codes.InvalidArgument:
		return fmt.Errorf("%s: %w: %s", method, types.ErrInvalidValue, msg)
	}
	return fmt.Errorf("%s: %w", method, err)
}

func (r *Remote) nodeCall(ctx context.Context, method string) (NodeID, error) {
	out, err := r.call(ctx, method, map[string]any{})
	if err != nil {
		return 0, err
	}
	return WireNode(out, "node")
}

func (r *Remote) Root(ctx context.Context) (NodeID, error) {
	return r.nodeCall(ctx, MethodRoot)
}

func (r *Remote) CreateNode(ctx context.Context) (NodeID, error) {
	return r.nodeCall(ctx, MethodCreateNode)
}

func (r *Remote) CreateEdge(ctx context.Context, from, to NodeID, typ EdgeType, tag int) error {
	_, err := r.call(ctx, MethodCreateEdge, EdgeToWire(Edge{From: from, To: to, Type: typ, Tag: tag}))
	return err
}

func (r *Remote) DeleteEdge(ctx context.Context, from, to NodeID, typ EdgeType) error {
	_, err := r.call(ctx, MethodDeleteEdge, map[string]any{
		"from": int64(from),
		"to":   int64(to),
		"type": string(typ),
	})
	return err
}

func (r *Remote) SetProperty(ctx context.Context, n NodeID, key types.PropertyKey, value any) error {
	prop, err := PropertyToWire(key, value)
	if err != nil {
		return err
	}
	_, err = r.call(ctx, MethodSetProperty, map[string]any{
		"node":       int64(n),
		"key":        KeyToWire(key),
		"value_json": prop["value_json"],
	})
	return err
}

func (r *Remote) Property(ctx context.Context, n NodeID, key types.PropertyKey) (any, bool, error) {
	out, err := r.call(ctx, MethodGetProperty, map[string]any{
		"node": int64(n),
		"key":  KeyToWire(key),
	})
	if err != nil {
		return nil, false, err
	}
	if !WireBool(out, "found") {
		return nil, false, nil
	}
	v, err := ValueFromWire(out, key)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *Remote) RemoveProperty(ctx context.Context, n NodeID, key types.PropertyKey) error {
	_, err := r.call(ctx, MethodRemoveProperty, map[string]any{
		"node": int64(n),
		"key":  KeyToWire(key),
	})
	return err
}

func (r *Remote) Properties(ctx context.Context, n NodeID) (map[types.PropertyKey]any, error) {
	out, err := r.call(ctx, MethodListProperties, map[string]any{"node": int64(n)})
	if err != nil {
		return nil, err
	}
	items, err := WireList(out, "properties")
	if err != nil {
		return nil, err
	}
	props := make(map[types.PropertyKey]any, len(items))
	for _, item := range items {
		key, v, err := PropertyFromWire(item)
		if err != nil {
			return nil, err
		}
		props[key] = v
	}
	return props, nil
}

func (r *Remote) Edges(ctx context.Context, n NodeID, typ EdgeType, dir Direction) ([]Edge, error) {
	out, err := r.call(ctx, MethodListEdges, map[string]any{
		"node":      int64(n),
		"type":      string(typ),
		"direction": dir.String(),
	})
	if err != nil {
		return nil, err
	}
	items, err := WireList(out, "edges")
	if err != nil {
		return nil, err
	}
	edges := make([]Edge, 0, len(items))
	for _, item := range items {
		e, err := EdgeFromWire(item)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, nil
}

func (r *Remote) Traverse(ctx context.Context, start NodeID, spec TraversalSpec, eval Evaluator) ([]NodeID, error) {
	return Walk(ctx, r, start, spec, eval)
}

func (r *Remote) Commit(ctx context.Context) error {
	_, err := r.call(ctx, MethodCommit, map[string]any{})
	return err
}

func (r *Remote) Clear(ctx context.Context) error {
	_, err := r.call(ctx, MethodClear, map[string]any{})
	return err
}

// Close commits pending writes on the service and closes the connection.
func (r *Remote) Close() error {
	var result *multierror.Error
	if err := r.Commit(context.Background()); err != nil {
		result = multierror.Append(result, err)
	}
	if err := r.conn.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to close graph service connection: %w", err))
	}
	return result.ErrorOrNil()
}
