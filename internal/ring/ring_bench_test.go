package ring

import "testing"

func BenchmarkTryPushTryPop(b *testing.B) {
	r := New[int](1024)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.TryPush(i)
		r.TryPop()
	}
}

func BenchmarkTryPushOnly(b *testing.B) {
	r := New[int](1 << 20)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.TryPush(i)
	}
}
