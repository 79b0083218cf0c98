package accountcache

import (
	"testing"
	"time"

	solanago "github.com/gagliardetto/solana-go"
)

func testKey(b byte) solanago.PublicKey {
	var pk solanago.PublicKey
	pk[0] = b
	return pk
}

func TestCache_InsertContains(t *testing.T) {
	c := New(time.Minute)

	if c.Contains(testKey(1)) {
		t.Error("empty cache must not contain anything")
	}

	c.Insert(testKey(1))
	if !c.Contains(testKey(1)) {
		t.Error("inserted account must be found")
	}
	if c.Contains(testKey(2)) {
		t.Error("unknown account must not be found")
	}
	if c.Size() != 1 {
		t.Errorf("size %d, want 1", c.Size())
	}
}

func TestCache_ExpiredReadsMiss(t *testing.T) {
	c := New(time.Minute)

	base := time.Unix(1000, 0)
	c.now = func() time.Time { return base }
	c.Insert(testKey(1))

	// At exactly the TTL the entry still counts.
	c.now = func() time.Time { return base.Add(time.Minute) }
	if !c.Contains(testKey(1)) {
		t.Error("entry at exactly the TTL must still hit")
	}

	c.now = func() time.Time { return base.Add(time.Minute + time.Second) }
	if c.Contains(testKey(1)) {
		t.Error("expired entry must read as a miss")
	}
	// Expired but not yet swept: still occupies a slot.
	if c.Size() != 1 {
		t.Errorf("size %d, want 1 before the sweep", c.Size())
	}
}

func TestCache_RemoveExpired(t *testing.T) {
	c := New(time.Minute)

	base := time.Unix(1000, 0)
	c.now = func() time.Time { return base }
	c.Insert(testKey(1))
	c.Insert(testKey(2))

	c.now = func() time.Time { return base.Add(30 * time.Second) }
	c.Insert(testKey(3))

	c.now = func() time.Time { return base.Add(90 * time.Second) }
	if removed := c.RemoveExpired(); removed != 2 {
		t.Errorf("removed %d, want 2", removed)
	}
	if c.Contains(testKey(1)) || c.Contains(testKey(2)) {
		t.Error("swept entries must be gone")
	}
	if !c.Contains(testKey(3)) {
		t.Error("fresh entry must survive the sweep")
	}
}

func TestCache_InsertRefreshesTimestamp(t *testing.T) {
	c := New(time.Minute)

	base := time.Unix(1000, 0)
	c.now = func() time.Time { return base }
	c.Insert(testKey(1))

	// Re-inserting just before expiry restarts the clock.
	c.now = func() time.Time { return base.Add(59 * time.Second) }
	c.Insert(testKey(1))

	c.now = func() time.Time { return base.Add(110 * time.Second) }
	if !c.Contains(testKey(1)) {
		t.Error("refreshed entry must still be alive")
	}
	if removed := c.RemoveExpired(); removed != 0 {
		t.Errorf("removed %d, want 0", removed)
	}
}

func TestCache_DefaultTTL(t *testing.T) {
	c := New(0)
	if c.ttl != DefaultTTL {
		t.Errorf("ttl %s, want DefaultTTL %s", c.ttl, DefaultTTL)
	}
}
