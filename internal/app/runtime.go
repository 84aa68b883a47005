package app

import (
	"os"
	"strconv"
	"sync"
)

const testModeEnv = "ASSETTRACK_TEST_MODE"

var (
	testModeMu     sync.RWMutex
	testModeLoaded bool
	testModeOn     bool
)

// InTestMode reports whether binaries should skip connecting to Postgres and Redis.
func InTestMode() bool {
	testModeMu.RLock()
	loaded, on := testModeLoaded, testModeOn
	testModeMu.RUnlock()
	if loaded {
		return on
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads ASSETTRACK_TEST_MODE and returns the new value.
func RefreshTestMode() bool {
	on, _ := strconv.ParseBool(os.Getenv(testModeEnv))
	testModeMu.Lock()
	testModeLoaded, testModeOn = true, on
	testModeMu.Unlock()
	return on
}
