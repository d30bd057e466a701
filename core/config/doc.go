// Package config provides type-safe environment variable loading with
// per-type caching. Each configuration struct is parsed once and reused for
// subsequent calls, and a .env file is loaded automatically on first use.
//
// Basic usage:
//
//	import "github.com/stencilhq/stencil/core/config"
//
//	type DatabaseConfig struct {
//		Host     string `env:"DB_HOST" envDefault:"localhost"`
//		Port     int    `env:"DB_PORT" envDefault:"5432"`
//		Username string `env:"DB_USER,required"`
//		Password string `env:"DB_PASS,required"`
//	}
//
//	func main() {
//		var db DatabaseConfig
//
//		if err := config.Load(&db); err != nil {
//			log.Fatal(err)
//		}
//
//		// Or panic on failure during startup.
//		config.MustLoad(&db)
//	}
//
// # Caching behavior
//
// Each configuration type is loaded only once per process:
//
//	var cfg1 DatabaseConfig
//	config.Load(&cfg1) // parses the environment
//
//	var cfg2 DatabaseConfig
//	config.Load(&cfg2) // returns the cached value, cfg1 == cfg2
//
// Different types are cached independently, so every component can declare
// its own configuration struct.
package config
