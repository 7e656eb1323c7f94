package config

import "time"

// Config holds corpus configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Server     ServerCfg     `mapstructure:"server" yaml:"server" json:"server"`
	Storage    StorageCfg    `mapstructure:"storage" yaml:"storage" json:"storage"`
	Pipeline   PipelineCfg   `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Stages     StagesCfg     `mapstructure:"stages" yaml:"stages" json:"stages"`
	VectorLink VectorLinkCfg `mapstructure:"vectorlink" yaml:"vectorlink" json:"vectorlink"`
}

// ServerCfg configures the HTTP API server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host" json:"host"`
	Port string `mapstructure:"port" yaml:"port" json:"port"`
}

// StorageCfg configures the S3-compatible object store.
type StorageCfg struct {
	Endpoint      string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	AccessKey     string `mapstructure:"access_key" yaml:"access_key" json:"access_key"`     // supports ${ENV_VAR} syntax
	SecretKey     string `mapstructure:"secret_key" yaml:"secret_key" json:"secret_key"`     // supports ${ENV_VAR} syntax
	UseSSL        bool   `mapstructure:"use_ssl" yaml:"use_ssl" json:"use_ssl"`
	Region        string `mapstructure:"region" yaml:"region" json:"region"`
	PublicBucket  string `mapstructure:"public_bucket" yaml:"public_bucket" json:"public_bucket"`
	PrivateBucket string `mapstructure:"private_bucket" yaml:"private_bucket" json:"private_bucket"`
	PresignTTL    string `mapstructure:"presign_ttl" yaml:"presign_ttl" json:"presign_ttl"` // Go duration string
}

// PresignExpiry returns the presigned URL lifetime (default 24h).
func (s StorageCfg) PresignExpiry() time.Duration {
	if d, err := time.ParseDuration(s.PresignTTL); err == nil && d > 0 {
		return d
	}
	return 24 * time.Hour
}

// PipelineCfg configures the reconciliation sweep and backend selection.
type PipelineCfg struct {
	// AutoProcess gates whether the sweep runs at all.
	AutoProcess bool `mapstructure:"auto_process" yaml:"auto_process" json:"auto_process"`

	// SweepInterval is the pause between sweeps, as a Go duration string.
	SweepInterval string `mapstructure:"sweep_interval" yaml:"sweep_interval" json:"sweep_interval"`

	// UseVectorLinkImporter selects the local synchronous training backend
	// instead of the remote training job service.
	UseVectorLinkImporter bool `mapstructure:"use_vectorlink_importer" yaml:"use_vectorlink_importer" json:"use_vectorlink_importer"`

	// UseVectorLinkDocumentExtractors extracts text locally, skipping the
	// remote OCR stage entirely.
	UseVectorLinkDocumentExtractors bool `mapstructure:"use_vectorlink_document_extractors" yaml:"use_vectorlink_document_extractors" json:"use_vectorlink_document_extractors"`
}

// SweepEvery returns the sweep interval (default 30s).
func (p PipelineCfg) SweepEvery() time.Duration {
	if d, err := time.ParseDuration(p.SweepInterval); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// StageCfg configures one remote stage service.
type StageCfg struct {
	URL     string `mapstructure:"url" yaml:"url" json:"url"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key" json:"api_key"` // supports ${ENV_VAR} syntax
	Timeout string `mapstructure:"timeout" yaml:"timeout" json:"timeout"` // Go duration string
}

// HTTPTimeout returns the stage HTTP client timeout (default 30s).
func (s StageCfg) HTTPTimeout() time.Duration {
	if d, err := time.ParseDuration(s.Timeout); err == nil && d > 0 {
		return d
	}
	return 30 * time.Second
}

// StagesCfg groups the remote stage services.
type StagesCfg struct {
	OCR       StageCfg `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Decorator StageCfg `mapstructure:"decorator" yaml:"decorator" json:"decorator"`
	Training  StageCfg `mapstructure:"training" yaml:"training" json:"training"`
}

// VectorLinkCfg configures the vector archive used by the local importer
// backend and by trained-artifact deletion.
type VectorLinkCfg struct {
	URL       string `mapstructure:"url" yaml:"url" json:"url"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key" json:"api_key"` // supports ${ENV_VAR} syntax
	Namespace string `mapstructure:"namespace" yaml:"namespace" json:"namespace"`
	Timeout   string `mapstructure:"timeout" yaml:"timeout" json:"timeout"` // Go duration string
}

// HTTPTimeout returns the archive HTTP client timeout (default 60s).
func (v VectorLinkCfg) HTTPTimeout() time.Duration {
	if d, err := time.ParseDuration(v.Timeout); err == nil && d > 0 {
		return d
	}
	return 60 * time.Second
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
		Storage: StorageCfg{
			Endpoint:      "localhost:9000",
			AccessKey:     "${CORPUS_STORAGE_ACCESS_KEY}",
			SecretKey:     "${CORPUS_STORAGE_SECRET_KEY}",
			UseSSL:        false,
			Region:        "us-east-1",
			PublicBucket:  "corpus-public",
			PrivateBucket: "corpus-private",
			PresignTTL:    "24h",
		},
		Pipeline: PipelineCfg{
			AutoProcess:   true,
			SweepInterval: "30s",
		},
		Stages: StagesCfg{
			OCR: StageCfg{
				URL:     "http://localhost:9510",
				APIKey:  "${CORPUS_OCR_API_KEY}",
				Timeout: "30s",
			},
			Decorator: StageCfg{
				URL:     "http://localhost:9520",
				APIKey:  "${CORPUS_DECORATOR_API_KEY}",
				Timeout: "30s",
			},
			Training: StageCfg{
				URL:     "http://localhost:9530",
				APIKey:  "${CORPUS_TRAINING_API_KEY}",
				Timeout: "60s",
			},
		},
		VectorLink: VectorLinkCfg{
			URL:       "http://localhost:9540",
			APIKey:    "${CORPUS_VECTORLINK_API_KEY}",
			Namespace: "corpus",
			Timeout:   "60s",
		},
	}
}
