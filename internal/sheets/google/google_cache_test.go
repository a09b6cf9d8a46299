package google

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fresh reports whether rowFor would answer sheet from the cache.
func fresh(c *Client, sheet string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cachedSheet == sheet && time.Now().Before(c.cacheExpiresAt)
}

func TestRowCacheFreshness(t *testing.T) {
	c := &Client{cacheValidDuration: 50 * time.Millisecond}
	if fresh(c, "2024 Nebenkosten") {
		t.Fatal("cache should start stale")
	}

	warm(c, "2024 Nebenkosten", map[string]int{"stmt-a": 2}, 2)
	if !fresh(c, "2024 Nebenkosten") {
		t.Fatal("cache should be fresh after warming")
	}
	if fresh(c, "2025 Nebenkosten") {
		t.Fatal("cache must not answer for another year's sheet")
	}

	time.Sleep(80 * time.Millisecond)
	if fresh(c, "2024 Nebenkosten") {
		t.Fatal("cache should expire after its validity")
	}

	warm(c, "2024 Nebenkosten", map[string]int{"stmt-a": 2}, 2)
	c.InvalidateRowCache()
	if fresh(c, "2024 Nebenkosten") {
		t.Fatal("cache should be stale after invalidation")
	}
}

// warm primes the cache as if column A of sheet had been read.
func warm(c *Client, sheet string, rows map[string]int, count int) {
	c.mu.Lock()
	c.cachedSheet = sheet
	c.cachedRows = rows
	c.cachedRowCount = count
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()
}

func TestRowForUsesCache(t *testing.T) {
	// svc is nil: any cache miss would panic
	c := &Client{cacheValidDuration: 2 * time.Minute}
	warm(c, "2024 Nebenkosten", map[string]int{"stmt-a": 2, "stmt-b": 3}, 3)

	tests := []struct {
		name       string
		id         string
		wantRow    int
		wantExists bool
	}{
		{"existing row", "stmt-b", 3, true},
		{"first data row", "stmt-a", 2, true},
		{"new statement appends", "stmt-c", 4, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row, exists, err := c.rowFor(context.Background(), "2024 Nebenkosten", tt.id)
			if err != nil {
				t.Fatalf("rowFor: %v", err)
			}
			if row != tt.wantRow || exists != tt.wantExists {
				t.Fatalf("got row %d exists %v, want %d %v", row, exists, tt.wantRow, tt.wantExists)
			}
		})
	}
}

func TestRememberAdvancesRowCount(t *testing.T) {
	c := &Client{cacheValidDuration: 2 * time.Minute}
	warm(c, "2024 Nebenkosten", map[string]int{"stmt-a": 2}, 2)

	c.remember("2024 Nebenkosten", "stmt-b", 3)
	row, exists, err := c.rowFor(context.Background(), "2024 Nebenkosten", "stmt-b")
	if err != nil || !exists || row != 3 {
		t.Fatalf("got row %d exists %v err %v", row, exists, err)
	}
	next, exists, _ := c.rowFor(context.Background(), "2024 Nebenkosten", "stmt-c")
	if exists || next != 4 {
		t.Fatalf("next row = %d, want 4", next)
	}

	// rows for a different sheet are not cached
	c.remember("2023 Nebenkosten", "stmt-x", 7)
	c.mu.Lock()
	_, leaked := c.cachedRows["stmt-x"]
	c.mu.Unlock()
	if leaked {
		t.Fatal("row of another sheet leaked into the cache")
	}
}

func TestRememberConcurrentWithInvalidate(t *testing.T) {
	c := &Client{cacheValidDuration: 2 * time.Minute}
	warm(c, "2024 Nebenkosten", map[string]int{}, 1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			c.remember("2024 Nebenkosten", fmt.Sprintf("stmt-%d", i), i+2)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			c.InvalidateRowCache()
			_ = fresh(c, "2024 Nebenkosten")
		}
	}()
	wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cachedRowCount != 101 {
		t.Fatalf("cachedRowCount = %d, want 101", c.cachedRowCount)
	}
	if len(c.cachedRows) != 100 {
		t.Fatalf("cached %d rows, want 100", len(c.cachedRows))
	}
}
