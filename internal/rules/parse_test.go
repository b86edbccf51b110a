package rules

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/solatis/searchtrace/internal/types"
)

func TestParseFilter(t *testing.T) {
	data := []byte(`{
		"name": "worker threads",
		"any": [
			{"all": [
				{"field": "THREAD_ID", "op": "gte", "type": "numeric", "value": 2},
				{"field": "$group", "op": "eq", "value": "thread"}
			]},
			{"all": [
				{"field": "ARGS[*]", "op": "in", "type": "numeric", "values": [1, 2], "on_missing": "match", "on_coercion": "error"}
			]}
		]
	}`)

	filter, err := ParseFilter(data)
	if err != nil {
		t.Fatalf("ParseFilter() error = %v", err)
	}
	if filter.Name != "worker threads" || len(filter.OrGroups) != 2 {
		t.Fatalf("unexpected filter: %+v", filter)
	}

	first := filter.OrGroups[0].Conditions[0]
	if first.Operator != int(OpGte) || first.FieldType != int(FieldTypeNumeric) || first.Value != 2.0 {
		t.Errorf("first condition = %+v", first)
	}
	second := filter.OrGroups[0].Conditions[1]
	if second.FieldType != int(FieldTypeAny) || second.OnMissingField != int(OnMissingSkip) {
		t.Errorf("defaults not applied: %+v", second)
	}
	in := filter.OrGroups[1].Conditions[0]
	if !in.FieldPath[1].Wildcard || in.OnMissingField != int(OnMissingMatch) || in.OnCoercionFail != int(OnCoercionError) {
		t.Errorf("IN condition = %+v", in)
	}

	compiled, err := Compile(filter)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	result, err := Evaluate(compiled, sampleEvent())
	if err != nil || !result.Matched || result.MatchedGroup != 0 {
		t.Errorf("Evaluate() = %+v, %v", result, err)
	}
}

func TestParseFilter_TopLevelAll(t *testing.T) {
	filter, err := ParseFilter([]byte(`{"all": [{"field": "$type", "op": "eq", "value": "gcBegin"}]}`))
	if err != nil {
		t.Fatalf("ParseFilter() error = %v", err)
	}
	if len(filter.OrGroups) != 1 || len(filter.OrGroups[0].Conditions) != 1 {
		t.Errorf("unexpected filter: %+v", filter)
	}
}

func TestParseFilter_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"not json", `{`, nil},
		{"unknown key", `{"anyy": []}`, nil},
		{"any and all", `{"any": [{"all": [{"field": "A", "op": "exists"}]}], "all": [{"field": "A", "op": "exists"}]}`, nil},
		{"empty group", `{"any": [{"all": []}]}`, types.ErrEmptyExpression},
		{"unknown operator", `{"all": [{"field": "A", "op": "like"}]}`, types.ErrInvalidOperator},
		{"unknown type", `{"all": [{"field": "A", "op": "eq", "type": "date"}]}`, nil},
		{"unknown policy", `{"all": [{"field": "A", "op": "eq", "on_missing": "ignore"}]}`, nil},
		{"value with field_ref", `{"all": [{"field": "A", "op": "eq", "value": 1, "field_ref": "B"}]}`, nil},
		{"bad path", `{"all": [{"field": "A[x]", "op": "eq"}]}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFilter([]byte(tt.data))
			if err == nil {
				t.Fatal("ParseFilter() error = nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseFilter() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		in      string
		want    []types.PathSegment
		wantErr bool
	}{
		{"THREAD_ID", []types.PathSegment{{Key: "THREAD_ID"}}, false},
		{"ARGS[0]", []types.PathSegment{{Key: "ARGS"}, {Index: 0, IsIndex: true}}, false},
		{"ARGS[*]", []types.PathSegment{{Key: "ARGS"}, {Wildcard: true}}, false},
		{" $group ", []types.PathSegment{{Key: "$group"}}, false},
		{"", nil, true},
		{"[0]", nil, true},
		{"ARGS[", nil, true},
		{"ARGS[-1]", nil, true},
		{"ARGS[0][1]", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePath(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePath(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr {
				if !reflect.DeepEqual(got, tt.want) {
					t.Errorf("ParsePath(%q) = %v, want %v", tt.in, got, tt.want)
				}
				if back := FormatPath(got); back != strings.TrimSpace(tt.in) {
					t.Errorf("FormatPath() = %q, want %q", back, strings.TrimSpace(tt.in))
				}
			}
		})
	}
}
