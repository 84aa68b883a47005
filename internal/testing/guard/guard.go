// Package guard switches binaries into test mode when imported by a test.
package guard

import (
	"os"
	"sync"
)

// EnvKey is read by app.InTestMode.
const EnvKey = "ASSETTRACK_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(EnvKey) == "" {
			_ = os.Setenv(EnvKey, "1")
		}
	})
}
