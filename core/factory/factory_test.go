package factory

import "testing"

type widget struct {
	Name string
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry[*widget]()
	err := reg.Register("basic", func(conf map[string]any) (*widget, error) {
		var c struct {
			Name string `json:"name"`
		}
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &widget{Name: c.Name}, nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register("basic", func(map[string]any) (*widget, error) { return nil, nil }); err == nil {
		t.Fatalf("duplicate registration should fail")
	}

	w, err := reg.Create(ModuleConfig{Type: "basic", Conf: map[string]any{"name": "a"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if w.Name != "a" {
		t.Fatalf("config not decoded: %+v", w)
	}
	if _, err := reg.Create(ModuleConfig{Type: "missing"}); err == nil {
		t.Fatalf("unknown type should fail")
	}
}
