// Package config loads moodzy configuration.
//
// A Loader starts from Default, merges each file layer in order, then applies
// environment overrides and, when enabled, validates the result. Layers may be
// JSON or YAML; nested objects merge key by key while lists and scalars
// replace. Durations are written as strings such as "250ms" or "5s".
//
// Environment variables take the form MOODZY_<SECTION>_<FIELD>, for example
// MOODZY_API_PORT=8080 or MOODZY_FEED_ENDPOINTS=tcp://a:9000,tcp://b:9000.
// Nested sections extend the prefix: MOODZY_TLS_MTLS_CLIENT_CA_FILES.
//
// The tls section, when enabled, applies to both the REST listener and the
// hub's own listener.
//
//	loader := config.NewLoader()
//	loader.AddLayer("configs/moodzy.yaml")
//	loader.AddLayer("configs/production.json")
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// File paths are checked before reading: traversal outside the working
// directory is refused and files larger than 10MB are rejected. JSON and YAML
// layers alike may nest at most 64 levels.
package config
