package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
)

//go:embed schema.json
var embeddedSchema string

// VerifyAgainstEmbeddedSchema validates the config against the embedded JSON schema
func VerifyAgainstEmbeddedSchema(cfg *Config) error {
	return verify(cfg, []byte(embeddedSchema))
}

func verify(cfg *Config, schemaData []byte) error {
	// parse schema
	var schema struct {
		Ref  string                     `json:"$ref"`
		Defs map[string]json.RawMessage `json:"$defs"`
	}
	if err := json.Unmarshal(schemaData, &schema); err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}
	var root struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if def, ok := schema.Defs["Config"]; ok {
		if err := json.Unmarshal(def, &root); err != nil {
			return fmt.Errorf("parse schema root: %w", err)
		}
	}

	// convert config to JSON for validation
	configData, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	var configMap map[string]interface{}
	if err := json.Unmarshal(configData, &configMap); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	// every section of the config must be known to the schema, stale schema otherwise
	var unknown []string
	for k := range configMap {
		if _, ok := root.Properties[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("sections missing in schema: %v", unknown)
	}

	// basic validation - check required fields match
	if err := validateRequiredFields(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// validateRequiredFields performs basic validation of required fields
func validateRequiredFields(cfg *Config) error {
	// check server config
	if cfg.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if cfg.Server.Timeout == 0 {
		return fmt.Errorf("server.timeout is required")
	}

	if cfg.Crawl.Workers <= 0 {
		return fmt.Errorf("crawl.workers must be positive")
	}
	if cfg.Fetch.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.retry.max_attempts must be positive")
	}

	// check enrichment config if enabled
	if cfg.Crawl.EnrichDescriptions {
		if cfg.Crawl.EnrichLimit <= 0 {
			return fmt.Errorf("crawl.enrich_limit must be positive when enrichment is enabled")
		}
		if cfg.Crawl.EnrichMaxLength <= 0 {
			return fmt.Errorf("crawl.enrich_max_length must be positive when enrichment is enabled")
		}
	}

	for i, s := range cfg.Sources {
		if s.URL == "" {
			return fmt.Errorf("sources[%d].url is required", i)
		}
	}

	return nil
}

// GenerateSchema generates a JSON schema for the Config struct
func GenerateSchema() (*jsonschema.Schema, error) {
	return jsonschema.Reflect(&Config{}), nil
}
