package engine

import (
	"testing"
)

// BenchmarkBinomialValue_100 measures a typical host call.
func BenchmarkBinomialValue_100(b *testing.B) {
	in := baseInputs()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		BinomialValue(in)
	}
}

// BenchmarkBinomialValue_1000 shows the O(steps^2) cost of a fine lattice.
func BenchmarkBinomialValue_1000(b *testing.B) {
	in := baseInputs()
	in.Steps = 1000

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		BinomialValue(in)
	}
}

// BenchmarkBinomialValue_Parallel checks that independent calls scale without contention.
func BenchmarkBinomialValue_Parallel(b *testing.B) {
	in := baseInputs()

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			BinomialValue(in)
		}
	})
}
