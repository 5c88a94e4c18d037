// Benchmarks against a running panel server. Start one first:
//
//	objpermsctl server
//
// with the definitions file registering a "vm" kind that has a "start"
// permission, and a user named "bob" in the users table. Override the
// target with OBJPERMS_BENCH_URL (default http://localhost:8080).
package benchmark

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"testing"
)

func benchURL() string {
	if v := os.Getenv("OBJPERMS_BENCH_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func requireServer(b *testing.B) {
	resp, err := http.Get(benchURL() + "/")
	if err != nil {
		b.Skipf("no panel server at %s: %v", benchURL(), err)
	}
	drain(resp)
}

func BenchmarkPanelPage(b *testing.B) {
	requireServer(b)

	b.Run("GET /panel/vm/7", func(b *testing.B) {
		b.ReportAllocs()
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			resp, err := http.Get(benchURL() + "/panel/vm/7")
			if err != nil {
				b.Fatal(err)
			}
			drain(resp)
		}
	})

	b.Run("GET / status", func(b *testing.B) {
		b.ReportAllocs()
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			resp, err := http.Get(benchURL() + "/")
			if err != nil {
				b.Fatal(err)
			}
			drain(resp)
		}
	})
}

// BenchmarkAddUser measures the add-user round trip. Repeats land on the
// same grant rows, which the store inserts with ON CONFLICT DO NOTHING,
// so the request is safe to hammer.
func BenchmarkAddUser(b *testing.B) {
	requireServer(b)

	b.Run("POST /panel/vm/7/users", func(b *testing.B) {
		b.ReportAllocs()
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			w := multipart.NewWriter(&buf)
			_ = w.WriteField("user", "bob")
			_ = w.WriteField("obj", "7")
			_ = w.WriteField("start", "on")
			_ = w.Close()

			r, _ := http.NewRequest("POST", benchURL()+"/panel/vm/7/users", &buf)
			r.Header.Set("Content-Type", w.FormDataContentType())
			resp, err := http.DefaultClient.Do(r)
			if err != nil {
				b.Fatal(err)
			}
			drain(resp)
		}
	})
}
