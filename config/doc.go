// Package config provides application configuration management.
//
// Configuration is read from config.yaml (in "." or "./config") with viper.
// A .env file in the working directory is loaded first, and any key can be
// overridden by an environment variable with the JUDGEBOX_ prefix, dots
// replaced by underscores (JUDGEBOX_COORDINATOR_URL, JUDGEBOX_SANDBOX_BACKEND).
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Coordinator: %s\n", cfg.Coordinator.URL)
package config
