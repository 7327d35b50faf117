package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// defaultConfig returns config with every default applied
func defaultConfig() *Config {
	cfg := newConfig()
	setDefaults(&cfg)
	return &cfg
}

func TestVerifyAgainstEmbeddedSchema(t *testing.T) {
	tests := []struct {
		name    string
		config  func() *Config
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid config",
			config: defaultConfig,
		},
		{
			name: "valid config with sources",
			config: func() *Config {
				cfg := defaultConfig()
				cfg.Sources = []SourceConfig{{URL: "https://example.com/events", Kind: "page"}}
				return cfg
			},
		},
		{
			name: "missing server listen",
			config: func() *Config {
				cfg := defaultConfig()
				cfg.Server.Listen = ""
				return cfg
			},
			wantErr: true,
			errMsg:  "server.listen is required",
		},
		{
			name: "enrichment enabled without limit",
			config: func() *Config {
				cfg := defaultConfig()
				cfg.Crawl.EnrichDescriptions = true
				cfg.Crawl.EnrichLimit = 0
				return cfg
			},
			wantErr: true,
			errMsg:  "crawl.enrich_limit must be positive when enrichment is enabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyAgainstEmbeddedSchema(tt.config())
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestVerify_StaleSchema(t *testing.T) {
	stale := `{"$ref":"#/$defs/Config","$defs":{"Config":{"properties":{"server":{},"database":{}}}}}`
	err := verify(defaultConfig(), []byte(stale))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sections missing in schema")
	assert.Contains(t, err.Error(), "crawl")

	err = verify(defaultConfig(), []byte("not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse embedded schema")
}

func TestEmbeddedSchemaMatchesConfig(t *testing.T) {
	var embedded map[string]any
	require.NoError(t, json.Unmarshal([]byte(embeddedSchema), &embedded))

	schema, err := GenerateSchema()
	require.NoError(t, err)
	data, err := schema.MarshalJSON()
	require.NoError(t, err)
	var generated map[string]any
	require.NoError(t, json.Unmarshal(data, &generated))

	// every struct known to the reflector is described by the embedded file
	genDefs, ok := generated["$defs"].(map[string]any)
	require.True(t, ok)
	embDefs, ok := embedded["$defs"].(map[string]any)
	require.True(t, ok)
	for name := range genDefs {
		assert.Contains(t, embDefs, name, "schema.json is stale, run go generate ./pkg/config")
	}
}

func TestValidateRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		config  func() *Config
		wantErr bool
		errMsg  string
	}{
		{
			name:   "valid minimal config",
			config: defaultConfig,
		},
		{
			name: "zero server timeout",
			config: func() *Config {
				cfg := defaultConfig()
				cfg.Server.Timeout = 0
				return cfg
			},
			wantErr: true,
			errMsg:  "server.timeout is required",
		},
		{
			name: "no workers",
			config: func() *Config {
				cfg := defaultConfig()
				cfg.Crawl.Workers = 0
				return cfg
			},
			wantErr: true,
			errMsg:  "crawl.workers must be positive",
		},
		{
			name: "no attempts",
			config: func() *Config {
				cfg := defaultConfig()
				cfg.Fetch.Retry.MaxAttempts = -1
				return cfg
			},
			wantErr: true,
			errMsg:  "fetch.retry.max_attempts must be positive",
		},
		{
			name: "enrichment enabled with missing max length",
			config: func() *Config {
				cfg := defaultConfig()
				cfg.Crawl.EnrichDescriptions = true
				cfg.Crawl.EnrichMaxLength = 0
				return cfg
			},
			wantErr: true,
			errMsg:  "crawl.enrich_max_length must be positive when enrichment is enabled",
		},
		{
			name: "source without url",
			config: func() *Config {
				cfg := defaultConfig()
				cfg.Sources = []SourceConfig{{Name: "nameless", PollInterval: time.Hour}}
				return cfg
			},
			wantErr: true,
			errMsg:  "sources[0].url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRequiredFields(tt.config())
			if tt.wantErr {
				require.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestGenerateSchema(t *testing.T) {
	schema, err := GenerateSchema()
	require.NoError(t, err)
	require.NotNil(t, schema)

	// verify schema can be marshaled to JSON
	data, err := schema.MarshalJSON()
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	// verify it contains expected fields
	schemaStr := string(data)
	assert.Contains(t, schemaStr, "Config")
	assert.Contains(t, schemaStr, "server")
	assert.Contains(t, schemaStr, "site_profiles")
	assert.Contains(t, schemaStr, "dedup_similarity")
}
