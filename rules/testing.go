//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// TestingContext flags context.Background() and context.TODO() in test
// bodies. t.Context() is canceled when the test ends, which stops pipeline
// and MQTT goroutines before goleak checks run. Cleanup funcs run after
// t.Context() is canceled and are exempt.
func TestingContext(m dsl.Matcher) {
	m.Match(
		`$ctx := context.Background()`,
		`$ctx := context.TODO()`,
		`$ctx, $cancel := context.WithCancel(context.Background())`,
		`$ctx, $cancel := context.WithTimeout(context.Background(), $d)`,
	).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("in tests, derive contexts from t.Context()")
}

// BenchmarkLoop flags b.N loops; b.Loop() runs setup once per -count.
func BenchmarkLoop(m dsl.Matcher) {
	m.Match(`for range $b.N { $*body }`).
		Where(m["b"].Type.Is("*testing.B")).
		Report("use for $b.Loop() { ... }").
		Suggest("for $b.Loop() { $body }")

	m.Match(`for $i := 0; $i < $b.N; $i++ { $*body }`).
		Where(m["b"].Type.Is("*testing.B")).
		Report("use for $b.Loop() { ... }; declare $i separately if the body needs it")
}
