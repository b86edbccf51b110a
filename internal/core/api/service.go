// Package api provides the gRPC graph service that hosts a trace graph for
// remote writers and readers.
package api

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/searchtrace/internal/graph"
)

// GraphServer is the handler set of searchtrace.graph.v1.GraphService.
type GraphServer interface {
	Root(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateNode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateEdge(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteEdge(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetProperty(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProperty(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveProperty(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListProperties(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEdges(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Commit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Clear(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type handlerFunc func(GraphServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call handlerFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(GraphServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: graph.FullMethod(method)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(GraphServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the graph service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: graph.ServiceName,
	HandlerType: (*GraphServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(graph.MethodRoot, GraphServer.Root),
		unary(graph.MethodCreateNode, GraphServer.CreateNode),
		unary(graph.MethodCreateEdge, GraphServer.CreateEdge),
		unary(graph.MethodDeleteEdge, GraphServer.DeleteEdge),
		unary(graph.MethodSetProperty, GraphServer.SetProperty),
		unary(graph.MethodGetProperty, GraphServer.GetProperty),
		unary(graph.MethodRemoveProperty, GraphServer.RemoveProperty),
		unary(graph.MethodListProperties, GraphServer.ListProperties),
		unary(graph.MethodListEdges, GraphServer.ListEdges),
		unary(graph.MethodCommit, GraphServer.Commit),
		unary(graph.MethodClear, GraphServer.Clear),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "searchtrace/graph/v1/graph.proto",
}

// RegisterGraphServer registers srv on s.
func RegisterGraphServer(s grpc.ServiceRegistrar, srv GraphServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// GraphService implements GraphServer over a local Graph.
// Backends are single-writer, so calls are serialized.
type GraphService struct {
	mu     sync.Mutex
	graph  graph.Graph
	logger *zap.Logger
}

// NewGraphService creates service instance hosting g.
func NewGraphService(g graph.Graph, logger *zap.Logger) (*GraphService, error) {
	if g == nil {
		return nil, errors.New("graph cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphService{graph: g, logger: logger}, nil
}

func reply(fields map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, toStatus(err)
	}
	return out, nil
}

func empty() (*structpb.Struct, error) {
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
}

func (s *GraphService) Root(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.graph.Root(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"node": int64(n)})
}

func (s *GraphService) CreateNode(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.graph.CreateNode(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"node": int64(n)})
}

func (s *GraphService) CreateEdge(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	e, err := graph.EdgeFromWire(req)
	if err != nil {
		return nil, toStatus(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.graph.CreateEdge(ctx, e.From, e.To, e.Type, e.Tag); err != nil {
		return nil, toStatus(err)
	}
	return empty()
}

func (s *GraphService) DeleteEdge(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	from, err := graph.WireNode(req, "from")
	if err != nil {
		return nil, toStatus(err)
	}
	to, err := graph.WireNode(req, "to")
	if err != nil {
		return nil, toStatus(err)
	}
	typ, err := graph.WireString(req, "type")
	if err != nil {
		return nil, toStatus(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.graph.DeleteEdge(ctx, from, to, graph.EdgeType(typ)); err != nil {
		return nil, toStatus(err)
	}
	return empty()
}

func (s *GraphService) SetProperty(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	n, err := graph.WireNode(req, "node")
	if err != nil {
		return nil, toStatus(err)
	}
	wireKey, err := graph.WireStruct(req, "key")
	if err != nil {
		return nil, toStatus(err)
	}
	key, err := graph.KeyFromWire(wireKey)
	if err != nil {
		return nil, toStatus(err)
	}
	v, err := graph.ValueFromWire(req, key)
	if err != nil {
		return nil, toStatus(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.graph.SetProperty(ctx, n, key, v); err != nil {
		return nil, toStatus(err)
	}
	return empty()
}

func (s *GraphService) GetProperty(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	n, err := graph.WireNode(req, "node")
	if err != nil {
		return nil, toStatus(err)
	}
	wireKey, err := graph.WireStruct(req, "key")
	if err != nil {
		return nil, toStatus(err)
	}
	key, err := graph.KeyFromWire(wireKey)
	if err != nil {
		return nil, toStatus(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok, err := s.graph.Property(ctx, n, key)
	if err != nil {
		return nil, toStatus(err)
	}
	if !ok {
		return reply(map[string]any{"found": false})
	}
	prop, err := graph.PropertyToWire(key, v)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(map[string]any{"found": true, "value_json": prop["value_json"]})
}

func (s *GraphService) RemoveProperty(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	n, err := graph.WireNode(req, "node")
	if err != nil {
		return nil, toStatus(err)
	}
	wireKey, err := graph.WireStruct(req, "key")
	if err != nil {
		return nil, toStatus(err)
	}
	key, err := graph.KeyFromWire(wireKey)
	if err != nil {
		return nil, toStatus(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.graph.RemoveProperty(ctx, n, key); err != nil {
		return nil, toStatus(err)
	}
	return empty()
}

func (s *GraphService) ListProperties(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	n, err := graph.WireNode(req, "node")
	if err != nil {
		return nil, toStatus(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	props, err := s.graph.Properties(ctx, n)
	if err != nil {
		return nil, toStatus(err)
	}
	items := make([]any, 0, len(props))
	for key, v := range props {
		prop, err := graph.PropertyToWire(key, v)
		if err != nil {
			return nil, toStatus(err)
		}
		items = append(items, prop)
	}
	return reply(map[string]any{"properties": items})
}

func (s *GraphService) ListEdges(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	n, err := graph.WireNode(req, "node")
	if err != nil {
		return nil, toStatus(err)
	}
	typ, err := graph.WireString(req, "type")
	if err != nil {
		return nil, toStatus(err)
	}
	dirName, err := graph.WireString(req, "direction")
	if err != nil {
		return nil, toStatus(err)
	}
	dir, err := graph.ParseDirection(dirName)
	if err != nil {
		return nil, toStatus(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	edges, err := s.graph.Edges(ctx, n, graph.EdgeType(typ), dir)
	if err != nil {
		return nil, toStatus(err)
	}
	items := make([]any, len(edges))
	for i, e := range edges {
		items[i] = graph.EdgeToWire(e)
	}
	return reply(map[string]any{"edges": items})
}

func (s *GraphService) Commit(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.graph.Commit(ctx); err != nil {
		return nil, toStatus(err)
	}
	return empty()
}

func (s *GraphService) Clear(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.graph.Clear(ctx); err != nil {
		return nil, toStatus(err)
	}
	s.logger.Info("trace graph cleared")
	return empty()
}
