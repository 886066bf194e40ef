package group

import (
	"testing"

	"github.com/xanlabs/xan-go/internal/agg"
	"github.com/xanlabs/xan-go/internal/moonblade"
)

func newSumTuple() Tuple {
	sum, _ := agg.New("sum")
	return Tuple{sum}
}

func sumOf(tuple Tuple) float64 {
	f, _ := tuple[0].Finalize().AsFloat()
	return f
}

func TestFingerprintExactIsCollisionFreeForDistinctFields(t *testing.T) {
	fp := Fingerprint{}
	k1 := fp.Key([][]byte{[]byte("a"), []byte("bc")})
	k2 := fp.Key([][]byte{[]byte("ab"), []byte("c")})
	if k1 == k2 {
		t.Fatal("exact fingerprint must not collapse (\"a\",\"bc\") and (\"ab\",\"c\") into the same key")
	}
}

func TestFingerprintSameFieldsSameKey(t *testing.T) {
	fp := Fingerprint{}
	k1 := fp.Key([][]byte{[]byte("x"), []byte("y")})
	k2 := fp.Key([][]byte{[]byte("x"), []byte("y")})
	if k1 != k2 {
		t.Fatal("identical field sets must fingerprint identically")
	}
}

func TestFingerprintHashedModeIsFixedWidth(t *testing.T) {
	fp := Fingerprint{Hashed: true}
	short := fp.Key([][]byte{[]byte("a")})
	long := fp.Key([][]byte{[]byte("a very long field value indeed, much longer than eight bytes")})
	if len(short) != 8 || len(long) != 8 {
		t.Fatalf("hashed keys must be fixed 8 bytes, got %d and %d", len(short), len(long))
	}
}

// TestHashGrouperScenarioS3 mirrors spec.md scenario S3: grouping by a
// key column and summing another column.
func TestHashGrouperScenarioS3(t *testing.T) {
	g := NewHashGrouper(newSumTuple)
	rows := []struct {
		key string
		val float64
	}{
		{"a", 1}, {"b", 2}, {"a", 3}, {"c", 4}, {"b", 5},
	}
	for i, r := range rows {
		g.Add(r.key, int64(i), []moonblade.Value{moonblade.Float(r.val)})
	}

	if g.Len() != 3 {
		t.Fatalf("expected 3 distinct groups, got %d", g.Len())
	}

	var keys []string
	sums := map[string]float64{}
	g.Each(func(key string, tuple Tuple) {
		keys = append(keys, key)
		sums[key] = sumOf(tuple)
	})

	// first-seen order: a, b, c
	want := []string{"a", "b", "c"}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("group emission order: got %v, want %v", keys, want)
		}
	}
	if sums["a"] != 4 || sums["b"] != 7 || sums["c"] != 4 {
		t.Fatalf("group sums: got %v", sums)
	}
}

func TestHashGrouperCombineMergesExistingAndAppendsNew(t *testing.T) {
	g1 := NewHashGrouper(newSumTuple)
	g1.Add("a", 0, []moonblade.Value{moonblade.Float(1)})
	g1.Add("b", 1, []moonblade.Value{moonblade.Float(2)})

	g2 := NewHashGrouper(newSumTuple)
	g2.Add("b", 2, []moonblade.Value{moonblade.Float(10)})
	g2.Add("c", 3, []moonblade.Value{moonblade.Float(100)})

	g1.Combine(g2)

	if g1.Len() != 3 {
		t.Fatalf("expected 3 groups after combine, got %d", g1.Len())
	}

	sums := map[string]float64{}
	var order []string
	g1.Each(func(key string, tuple Tuple) {
		order = append(order, key)
		sums[key] = sumOf(tuple)
	})

	if sums["a"] != 1 || sums["b"] != 12 || sums["c"] != 100 {
		t.Fatalf("combined sums: got %v", sums)
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("combined emission order: got %v, want %v", order, want)
		}
	}
}

// TestSortedGrouperEmitsOnKeyChange verifies O(1)-memory grouping:
// only the currently open group is live, emitted as soon as the key
// changes, with Finish flushing the trailing group.
func TestSortedGrouperEmitsOnKeyChange(t *testing.T) {
	var emitted []string
	sums := map[string]float64{}
	g := NewSortedGrouper(newSumTuple, func(key string, tuple Tuple) {
		emitted = append(emitted, key)
		sums[key] = sumOf(tuple)
	})

	// Pre-sorted input: a,a,b,b,b,c
	rows := []struct {
		key string
		val float64
	}{
		{"a", 1}, {"a", 2}, {"b", 3}, {"b", 4}, {"b", 5}, {"c", 6},
	}
	for i, r := range rows {
		g.Add(r.key, int64(i), []moonblade.Value{moonblade.Float(r.val)})
	}

	if len(emitted) != 2 {
		t.Fatalf("before Finish, expected 2 emitted groups (a, b), got %v", emitted)
	}

	g.Finish()

	want := []string{"a", "b", "c"}
	if len(emitted) != len(want) {
		t.Fatalf("after Finish, got %v, want %v", emitted, want)
	}
	for i := range want {
		if emitted[i] != want[i] {
			t.Fatalf("emission order: got %v, want %v", emitted, want)
		}
	}
	if sums["a"] != 3 || sums["b"] != 12 || sums["c"] != 6 {
		t.Fatalf("sorted-group sums: got %v", sums)
	}
}

func TestSortedGrouperFinishIsIdempotentNoOp(t *testing.T) {
	var emitCount int
	g := NewSortedGrouper(newSumTuple, func(key string, tuple Tuple) { emitCount++ })
	g.Add("a", 0, []moonblade.Value{moonblade.Float(1)})
	g.Finish()
	g.Finish()
	if emitCount != 1 {
		t.Fatalf("calling Finish twice should only flush once, got %d emits", emitCount)
	}
}
