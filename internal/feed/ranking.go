package feed

import (
	"math/rand/v2"
	"time"
)

// PromoSlot is the index a promoted item is pinned to.
const PromoSlot = 2

// NewRand returns a time-seeded source for one cache fill.
func NewRand() *rand.Rand {
	now := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(now, now>>17|1))
}

// Shuffle returns a uniformly shuffled copy of items.
func Shuffle[T any](items []T, rng *rand.Rand) []T {
	out := append([]T(nil), items...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Promote picks one promoted item at random and moves it to PromoSlot, or to
// the end when fewer items remain. Other items keep their relative order.
func Promote[T any](ordered []T, isPromoted func(T) bool, rng *rand.Rand) []T {
	var candidates []int
	for i, item := range ordered {
		if isPromoted(item) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return append([]T(nil), ordered...)
	}
	chosen := candidates[rng.IntN(len(candidates))]

	rest := make([]T, 0, len(ordered))
	rest = append(rest, ordered[:chosen]...)
	rest = append(rest, ordered[chosen+1:]...)

	slot := min(PromoSlot, len(rest))
	out := make([]T, 0, len(ordered))
	out = append(out, rest[:slot]...)
	out = append(out, ordered[chosen])
	return append(out, rest[slot:]...)
}

// Rank shuffles items and, when promote is set, pins one promoted item.
func Rank[T any](items []T, promote bool, isPromoted func(T) bool, rng *rand.Rand) []T {
	out := Shuffle(items, rng)
	if !promote {
		return out
	}
	return Promote(out, isPromoted, rng)
}
