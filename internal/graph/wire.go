package graph

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/searchtrace/internal/types"
)

/*
 * Wire contract of the remote graph service.
 *
 * Every request and response is a google.protobuf.Struct so no generated
 * code is needed on either side. Node ids and tags travel as numbers,
 * which is exact up to 2^53. A property key travels as its
 * (name, id, type) triple and a value as the JSON text produced by
 * types.EncodeValue, so the receiver rebuilds both without sharing the
 * sender's registry.
 *
 *   Root            {}                                  -> {node}
 *   CreateNode      {}                                  -> {node}
 *   CreateEdge      {from, to, type, tag}               -> {}
 *   DeleteEdge      {from, to, type}                    -> {}
 *   SetProperty     {node, key, value_json}             -> {}
 *   GetProperty     {node, key}                         -> {found, value_json}
 *   RemoveProperty  {node, key}                         -> {}
 *   ListProperties  {node}                              -> {properties: [{name, id, type, value_json}]}
 *   ListEdges       {node, type, direction}             -> {edges: [{from, to, type, tag}]}
 *   Commit          {}                                  -> {}
 *   Clear           {}                                  -> {}
 */

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "searchtrace.graph.v1.GraphService"

// Method names of the graph service.
const (
	MethodRoot           = "Root"
	MethodCreateNode     = "CreateNode"
	MethodCreateEdge     = "CreateEdge"
	MethodDeleteEdge     = "DeleteEdge"
	MethodSetProperty    = "SetProperty"
	MethodGetProperty    = "GetProperty"
	MethodRemoveProperty = "RemoveProperty"
	MethodListProperties = "ListProperties"
	MethodListEdges      = "ListEdges"
	MethodCommit         = "Commit"
	MethodClear          = "Clear"
)

// FullMethod returns the gRPC method path for a method name.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// KeyToWire encodes a property key as its wire triple.
func KeyToWire(key types.PropertyKey) map[string]any {
	return map[string]any{
		"name": key.Name,
		"id":   key.ID,
		"type": key.Type.String(),
	}
}

// PropertyToWire encodes a key and its value.
func PropertyToWire(key types.PropertyKey, value any) (map[string]any, error) {
	data, err := types.EncodeValue(key.Type, value)
	if err != nil {
		return nil, fmt.Errorf("property %s: %w", key.Name, err)
	}
	m := KeyToWire(key)
	m["value_json"] = string(data)
	return m, nil
}

// EdgeToWire encodes an edge.
func EdgeToWire(e Edge) map[string]any {
	return map[string]any{
		"from": int64(e.From),
		"to":   int64(e.To),
		"type": string(e.Type),
		"tag":  e.Tag,
	}
}

func wireError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", types.ErrInvalidValue, fmt.Sprintf(format, args...))
}

// WireInt reads an integral number field.
func WireInt(s *structpb.Struct, field string) (int64, error) {
	v, ok := s.GetFields()[field]
	if !ok {
		return 0, wireError("missing field %q", field)
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok || n.NumberValue != math.Trunc(n.NumberValue) {
		return 0, wireError("field %q is not an integer", field)
	}
	return int64(n.NumberValue), nil
}

// WireNode reads a node id field.
func WireNode(s *structpb.Struct, field string) (NodeID, error) {
	n, err := WireInt(s, field)
	return NodeID(n), err
}

// WireString reads a string field.
func WireString(s *structpb.Struct, field string) (string, error) {
	v, ok := s.GetFields()[field]
	if !ok {
		return "", wireError("missing field %q", field)
	}
	str, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", wireError("field %q is not a string", field)
	}
	return str.StringValue, nil
}

// WireBool reads a boolean field; a missing field is false.
func WireBool(s *structpb.Struct, field string) bool {
	return s.GetFields()[field].GetBoolValue()
}

// WireStruct reads a nested object field.
func WireStruct(s *structpb.Struct, field string) (*structpb.Struct, error) {
	v, ok := s.GetFields()[field]
	if !ok {
		return nil, wireError("missing field %q", field)
	}
	inner := v.GetStructValue()
	if inner == nil {
		return nil, wireError("field %q is not an object", field)
	}
	return inner, nil
}

// WireList reads a list of objects; a missing field is an empty list.
func WireList(s *structpb.Struct, field string) ([]*structpb.Struct, error) {
	v, ok := s.GetFields()[field]
	if !ok {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, wireError("field %q is not a list", field)
	}
	out := make([]*structpb.Struct, 0, len(list.GetValues()))
	for i, item := range list.GetValues() {
		obj := item.GetStructValue()
		if obj == nil {
			return nil, wireError("%s[%d] is not an object", field, i)
		}
		out = append(out, obj)
	}
	return out, nil
}

// KeyFromWire rebuilds a key from its triple.
func KeyFromWire(s *structpb.Struct) (types.PropertyKey, error) {
	name, err := WireString(s, "name")
	if err != nil {
		return types.PropertyKey{}, err
	}
	id, err := WireInt(s, "id")
	if err != nil {
		return types.PropertyKey{}, err
	}
	tag, err := WireString(s, "type")
	if err != nil {
		return types.PropertyKey{}, err
	}
	return types.KeyFromTriple(name, int(id), tag)
}

// ValueFromWire decodes the value_json field for key.
func ValueFromWire(s *structpb.Struct, key types.PropertyKey) (any, error) {
	data, err := WireString(s, "value_json")
	if err != nil {
		return nil, err
	}
	return types.DecodeValue(key.Type, []byte(data))
}

// PropertyFromWire rebuilds a key and value from one wire property.
func PropertyFromWire(s *structpb.Struct) (types.PropertyKey, any, error) {
	key, err := KeyFromWire(s)
	if err != nil {
		return types.PropertyKey{}, nil, err
	}
	v, err := ValueFromWire(s, key)
	if err != nil {
		return types.PropertyKey{}, nil, err
	}
	return key, v, nil
}

// EdgeFromWire rebuilds an edge.
func EdgeFromWire(s *structpb.Struct) (Edge, error) {
	from, err := WireNode(s, "from")
	if err != nil {
		return Edge{}, err
	}
	to, err := WireNode(s, "to")
	if err != nil {
		return Edge{}, err
	}
	typ, err := WireString(s, "type")
	if err != nil {
		return Edge{}, err
	}
	tag, err := WireInt(s, "tag")
	if err != nil {
		return Edge{}, err
	}
	return Edge{From: from, To: to, Type: EdgeType(typ), Tag: int(tag)}, nil
}

// ParseDirection converts a wire direction name.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "outgoing":
		return Outgoing, nil
	case "incoming":
		return Incoming, nil
	}
	return Outgoing, wireError("unknown direction %q", s)
}
