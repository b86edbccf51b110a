package types

import (
	"errors"
	"testing"
)

func TestRegistry_InternIdempotent(t *testing.T) {
	r := NewRegistry()

	k1, err := r.Intern("LOCAL_VAR", TypeInt)
	if err != nil {
		t.Fatalf("Intern() error = %v, want nil", err)
	}
	k2, err := r.Intern("LOCAL_VAR", TypeInt)
	if err != nil {
		t.Fatalf("Intern() second call error = %v, want nil", err)
	}
	if k1 != k2 {
		t.Errorf("Intern() = %+v then %+v, want identical keys", k1, k2)
	}
}

func TestRegistry_TypeMismatch(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Intern("FLAG", TypeBoolean); err != nil {
		t.Fatalf("Intern() error = %v", err)
	}
	_, err := r.Intern("FLAG", TypeString)
	if !errors.Is(err, ErrPropertyTypeMismatch) {
		t.Errorf("Intern() error = %v, want ErrPropertyTypeMismatch", err)
	}
}

func TestRegistry_WellKnownIDsStable(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()

	for _, name := range []string{PropEventType, PropStateID, PropThreadID, PropRunID} {
		ka, ok := a.ByName(name)
		if !ok {
			t.Fatalf("ByName(%s) missing", name)
		}
		kb, _ := b.ByName(name)
		if ka != kb {
			t.Errorf("%s: %+v != %+v across registries", name, ka, kb)
		}
	}
}

func TestRegistry_LookupAndKeys(t *testing.T) {
	r := NewRegistry()
	before := r.Len()

	key, err := r.Intern("ARGS", TypeString.ArrayOf())
	if err != nil {
		t.Fatalf("Intern() error = %v", err)
	}
	if got, ok := r.ByID(key.ID); !ok || got != key {
		t.Errorf("ByID(%d) = %+v, %v", key.ID, got, ok)
	}
	if r.Len() != before+1 {
		t.Errorf("Len() = %d, want %d", r.Len(), before+1)
	}

	keys := r.Keys()
	for i := 1; i < len(keys); i++ {
		if keys[i-1].ID >= keys[i].ID {
			t.Fatalf("Keys() not ordered by id at %d", i)
		}
	}
	if keys[len(keys)-1] != key {
		t.Errorf("last key = %+v, want %+v", keys[len(keys)-1], key)
	}
}

func TestRegistry_InvalidName(t *testing.T) {
	r := NewRegistry()
	long := make([]byte, MaxPropertyNameLength+1)
	for i := range long {
		long[i] = 'x'
	}

	for _, name := range []string{"", string(long)} {
		if _, err := r.Intern(name, TypeInt); !errors.Is(err, ErrInvalidPropertyName) {
			t.Errorf("Intern(%q) error = %v, want ErrInvalidPropertyName", name, err)
		}
	}
}

func TestRegistry_AdoptFromTriple(t *testing.T) {
	writer := NewRegistry()
	key := writer.MustIntern("HEAP_SIZE", TypeLong)

	remote, err := KeyFromTriple(key.Name, key.ID, key.Type.String())
	if err != nil {
		t.Fatalf("KeyFromTriple() error = %v", err)
	}
	if remote != key {
		t.Fatalf("KeyFromTriple() = %+v, want %+v", remote, key)
	}

	reader := NewRegistry()
	if err := reader.Adopt(remote); err != nil {
		t.Fatalf("Adopt() error = %v", err)
	}
	if got, _ := reader.ByName("HEAP_SIZE"); got != key {
		t.Errorf("ByName() after Adopt = %+v, want %+v", got, key)
	}

	next := reader.MustIntern("AFTER_ADOPT", TypeInt)
	if next.ID <= key.ID {
		t.Errorf("id minted after Adopt = %d, want > %d", next.ID, key.ID)
	}
}

func TestRegistry_AdoptConflict(t *testing.T) {
	r := NewRegistry()
	taken := r.MustIntern("TAKEN", TypeInt)

	err := r.Adopt(PropertyKey{Name: "OTHER", ID: taken.ID, Type: TypeInt})
	if !errors.Is(err, ErrPropertyIDConflict) {
		t.Errorf("Adopt() error = %v, want ErrPropertyIDConflict", err)
	}
}

func TestParseTypeTag(t *testing.T) {
	tests := []struct {
		in   string
		want TypeTag
		ok   bool
	}{
		{"int", TypeInt, true},
		{"string[]", TypeString.ArrayOf(), true},
		{"char", TypeChar, true},
		{"decimal", TypeUnspecified, false},
	}

	for _, tt := range tests {
		got, ok := ParseTypeTag(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseTypeTag(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
		if ok && got.String() != tt.in {
			t.Errorf("String() = %q, want %q", got.String(), tt.in)
		}
	}
}
