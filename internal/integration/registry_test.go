package integration

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type stubClient struct {
	closed bool
}

func (s *stubClient) Fetch(ctx context.Context) (interface{}, error) {
	return map[string]interface{}{"ok": true}, nil
}

func (s *stubClient) Close() error {
	s.closed = true
	return nil
}

func stubFactory(opts map[string]interface{}) (DeviceClient, error) {
	return &stubClient{}, nil
}

func TestRegistry_RegisterAndCreate(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("httpjson", stubFactory); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	client, err := r.Create("httpjson", nil)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if client == nil {
		t.Fatal("Create() returned nil client")
	}
}

func TestRegistry_TypeNamesAreCaseInsensitive(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("  HTTPJson ", stubFactory); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !r.Has("httpjson") {
		t.Error("Has(httpjson) = false, want true")
	}
	if _, err := r.Create("HTTPJSON", nil); err != nil {
		t.Errorf("Create() error = %v, want nil", err)
	}
}

func TestRegistry_RegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("httpjson", stubFactory); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register("httpjson", stubFactory); !errors.Is(err, ErrTypeExists) {
		t.Errorf("Register() duplicate error = %v, want ErrTypeExists", err)
	}
}

func TestRegistry_RegisterValidation(t *testing.T) {
	r := NewRegistry()

	if err := r.Register("", stubFactory); !errors.Is(err, ErrInvalidType) {
		t.Errorf("Register(empty) error = %v, want ErrInvalidType", err)
	}
	if err := r.Register("httpjson", nil); !errors.Is(err, ErrNilFactory) {
		t.Errorf("Register(nil factory) error = %v, want ErrNilFactory", err)
	}
}

func TestRegistry_CreateUnknownType(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Create("zigbee", nil); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Create(unknown) error = %v, want ErrUnknownType", err)
	}
}

func TestRegistry_CreatePropagatesFactoryError(t *testing.T) {
	r := NewRegistry()
	wantErr := errors.New("missing base_url")

	err := r.Register("httpjson", func(opts map[string]interface{}) (DeviceClient, error) {
		return nil, wantErr
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := r.Create("httpjson", nil); !errors.Is(err, wantErr) {
		t.Errorf("Create() error = %v, want wrapped factory error", err)
	}
}

func TestRegistry_TypesSorted(t *testing.T) {
	r := NewRegistry()
	for _, typ := range []string{"zwave", "httpjson", "modbus"} {
		if err := r.Register(typ, stubFactory); err != nil {
			t.Fatalf("Register(%s) error = %v", typ, err)
		}
	}

	want := []string{"httpjson", "modbus", "zwave"}
	if got := r.Types(); !reflect.DeepEqual(got, want) {
		t.Errorf("Types() = %v, want %v", got, want)
	}
}
