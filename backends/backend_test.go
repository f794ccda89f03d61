package backends

import "testing"

func TestUsageKey(t *testing.T) {
	b := Backend{ProviderID: "openrouter", Model: "gpt-4o"}
	if got, want := b.UsageKey(), "openrouter:gpt-4o"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestCatalogIsolation(t *testing.T) {
	src := []Backend{{ProviderID: "a", Model: "m1"}, {ProviderID: "b", Model: "m2"}}
	c := NewCatalog("chat", src)

	src[0].ProviderID = "mutated"
	if got := c.Backends()[0].ProviderID; got != "a" {
		t.Errorf("catalog shares caller slice: got %q", got)
	}

	out := c.Backends()
	out[1].Model = "mutated"
	if got := c.Backends()[1].Model; got != "m2" {
		t.Errorf("catalog shares returned slice: got %q", got)
	}
}

func TestCatalogFind(t *testing.T) {
	c := NewCatalog("chat", []Backend{
		{ProviderID: "a", Model: "m1"},
		{ProviderID: "b", Model: "m2"},
	})

	if _, ok := c.Find("b", "m2"); !ok {
		t.Error("expected to find b:m2")
	}
	if _, ok := c.Find("b", "missing"); ok {
		t.Error("did not expect to find b:missing")
	}
	if c.Len() != 2 {
		t.Errorf("got len %d, want 2", c.Len())
	}
}
