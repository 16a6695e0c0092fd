package security

import (
	"slices"
	"sync"
	"testing"
)

func TestCredentials(t *testing.T) {
	t.Parallel()

	c := NewCredentials()
	changes := 0
	c.OnChange(func() { changes++ })

	c.Set("openai", "sk-1")
	c.Set("openai", "sk-1")
	c.Set("ollama", "")
	c.Set("azure", "az-1")

	if v, ok := c.Get("openai"); !ok || v != "sk-1" {
		t.Errorf("Get(openai) = %q, %v", v, ok)
	}
	if _, ok := c.Get("ollama"); ok {
		t.Error("empty secrets must not be cached")
	}
	if got := c.Providers(); !slices.Equal(got, []string{"azure", "openai"}) {
		t.Errorf("Providers() = %v", got)
	}
	vals := c.Values()
	slices.Sort(vals)
	if !slices.Equal(vals, []string{"az-1", "sk-1"}) {
		t.Errorf("Values() = %v", vals)
	}

	c.Delete("azure")
	c.Delete("missing")
	if changes != 3 {
		t.Errorf("changes = %d, want 3 (two sets and one delete)", changes)
	}
}

func TestCredentials_Concurrent(t *testing.T) {
	t.Parallel()

	c := NewCredentials()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Set("p", string(rune('a'+i%26)))
		}()
		go func() {
			defer wg.Done()
			_ = c.Values()
		}()
	}
	wg.Wait()
}
