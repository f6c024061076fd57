package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

// Test binaries importing this package never open real connections unless a
// test points them somewhere explicitly.
func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
		if os.Getenv("REDIS_ADDR") == "" {
			_ = os.Setenv("REDIS_ADDR", "127.0.0.1:0")
		}
		if os.Getenv("WORKER_METRICS_ADDR") == "" {
			_ = os.Setenv("WORKER_METRICS_ADDR", "127.0.0.1:0")
		}
	})
}

func init() {
	ensureTestMode()
}

// TestMain can be delegated to from a package's own TestMain.
func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
