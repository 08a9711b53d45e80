// The hwpestream command runs streaming fabric simulations from the command
// line.
package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

func init() {
	_ = godotenv.Load()
}

func main() {
	Execute()
}

// envOr returns the value of the environment variable named by key, or
// fallback when it is unset. HWPESTREAM_* variables seed flag defaults.
func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}

	return fallback
}

func envOrInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return fallback
}
