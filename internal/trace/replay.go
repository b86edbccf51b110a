package trace

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/solatis/searchtrace/internal/types"
)

/*
 * JSONL notification replay.
 *
 * Each non-blank line is one notification:
 *
 *   {"kind": "threadStarted", "priority": 3, "props": {"THREAD_ID": 1}}
 *
 * Well-known property names convert to their registered type (THREAD_ID
 * becomes int, TIMESTAMP long). Other names are interned on first sight
 * with a type inferred from the JSON value; a later value of a different
 * shape is rejected.
 */

// maxRecordSize bounds one JSONL line.
const maxRecordSize = 4 << 20

// Record is the JSON form of one notification.
type Record struct {
	Kind     string         `json:"kind"`
	Priority *int32         `json:"priority,omitempty"`
	Props    map[string]any `json:"props,omitempty"`
}

// Notifier receives decoded notifications.
type Notifier interface {
	Notify(ctx context.Context, evt *types.Event) error
}

// DecodeRecord converts a record into an event, interning unknown
// property names in reg.
func DecodeRecord(reg *types.Registry, rec Record) (*types.Event, error) {
	kind := types.EventType(rec.Kind)
	if !kind.Known() || kind == types.EventState {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownEventType, rec.Kind)
	}
	evt := types.NewEvent(kind)
	if rec.Priority != nil {
		evt.SetPriority(*rec.Priority)
	}

	names := make([]string, 0, len(rec.Props))
	for name := range rec.Props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw := rec.Props[name]
		if raw == nil {
			continue
		}
		key, ok := reg.ByName(name)
		if !ok {
			tag, ok := types.InferTag(raw)
			if !ok {
				return nil, fmt.Errorf("%w: cannot infer a type for %s", types.ErrInvalidValue, name)
			}
			var err error
			if key, err = reg.Intern(name, tag); err != nil {
				return nil, err
			}
		}
		v, err := types.ConvertValue(key.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", name, err)
		}
		if err := evt.Set(key, v); err != nil {
			return nil, err
		}
	}
	return evt, nil
}

// EncodeRecord converts an event into its JSON form. char values are
// written as one-rune strings.
func EncodeRecord(evt *types.Event) Record {
	rec := Record{Kind: string(evt.Type)}
	if p, ok := evt.Priority(); ok {
		rec.Priority = &p
	}
	if evt.Len() > 0 {
		rec.Props = make(map[string]any, evt.Len())
	}
	for _, key := range evt.Keys() {
		v, _ := evt.Get(key)
		if key.Type.Elem() == types.TypeChar {
			v = charsToStrings(v)
		}
		rec.Props[key.Name] = v
	}
	return rec
}

func charsToStrings(v any) any {
	switch x := v.(type) {
	case rune:
		return string(x)
	case []rune:
		out := make([]string, len(x))
		for i, r := range x {
			out[i] = string(r)
		}
		return out
	}
	return v
}

// Replay decodes a JSONL stream and delivers each notification in order.
// It stops at the first malformed line or failed notification and returns
// how many notifications were delivered.
func Replay(ctx context.Context, r io.Reader, reg *types.Registry, n Notifier) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxRecordSize)

	delivered := 0
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return delivered, err
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return delivered, fmt.Errorf("line %d: failed to parse record: %w", line, err)
		}
		evt, err := DecodeRecord(reg, rec)
		if err != nil {
			return delivered, fmt.Errorf("line %d: %w", line, err)
		}
		if err := n.Notify(ctx, evt); err != nil {
			return delivered, fmt.Errorf("line %d: %w", line, err)
		}
		delivered++
	}
	if err := scanner.Err(); err != nil {
		return delivered, fmt.Errorf("failed to read notifications: %w", err)
	}
	return delivered, nil
}
