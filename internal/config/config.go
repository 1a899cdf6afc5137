package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP layer.
type ServerConfig struct {
	Addr          string `yaml:"addr"`
	MaxUploadMB   int    `yaml:"max_upload_mb"`
	MaxFileSizeMB int    `yaml:"max_file_size_mb"`
}

// SplitterConfig configures page-range splitting of input documents.
type SplitterConfig struct {
	ChunkPages     int `yaml:"chunk_pages"`
	OverlapPages   int `yaml:"overlap_pages"`
	ThresholdPages int `yaml:"threshold_pages"`
}

// CategoryRule tags segments whose text matches a keyword or pattern.
type CategoryRule struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Pattern  string   `yaml:"pattern,omitempty"`
}

// SegmenterConfig configures how extracted text is cut into segments.
type SegmenterConfig struct {
	MaxParagraphLen int            `yaml:"max_paragraph_len"`
	MaxChunkLen     int            `yaml:"max_chunk_len"`
	MinChunkLen     int            `yaml:"min_chunk_len"`
	Categories      []CategoryRule `yaml:"categories"`
}

// ClassifierConfig holds the keyword lists driving query classification.
type ClassifierConfig struct {
	ConditionKeywords []string `yaml:"condition_keywords"`
	Interrogatives    []string `yaml:"interrogatives"`
}

// RemoteConfig is the shared shape of the remote collaborator clients.
type RemoteConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
}

// QdrantConfig contains connection details for a qdrant vector index.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// IndexConfig selects and configures the vector index backend and the
// session manager's batching behaviour.
type IndexConfig struct {
	Type            string        `yaml:"type"`
	Qdrant          *QdrantConfig `yaml:"qdrant,omitempty"`
	UpsertBatchSize int           `yaml:"upsert_batch_size"`
	SettleMillis    int           `yaml:"settle_millis"`
	TopK            int           `yaml:"top_k"`
}

// PipelineConfig configures orchestration behaviour.
type PipelineConfig struct {
	SliceBatchSize int    `yaml:"slice_batch_size"`
	Instructions   string `yaml:"extraction_instructions"`
	Debug          bool   `yaml:"debug"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server      ServerConfig     `yaml:"server"`
	Splitter    SplitterConfig   `yaml:"splitter"`
	Segmenter   SegmenterConfig  `yaml:"segmenter"`
	Classifier  ClassifierConfig `yaml:"classifier"`
	Extractor   RemoteConfig     `yaml:"extractor"`
	Embedder    RemoteConfig     `yaml:"embedder"`
	Synthesizer RemoteConfig     `yaml:"synthesizer"`
	Index       IndexConfig      `yaml:"index"`
	Pipeline    PipelineConfig   `yaml:"pipeline"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/docqa/config.yaml and
// returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docqa", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 64
	}
	if cfg.Server.MaxFileSizeMB == 0 {
		cfg.Server.MaxFileSizeMB = 16
	}
	if cfg.Splitter.ChunkPages == 0 {
		cfg.Splitter.ChunkPages = 4
	}
	if cfg.Splitter.OverlapPages == 0 {
		cfg.Splitter.OverlapPages = 1
	}
	if cfg.Splitter.ThresholdPages == 0 {
		cfg.Splitter.ThresholdPages = 6
	}
	if cfg.Segmenter.MaxParagraphLen == 0 {
		cfg.Segmenter.MaxParagraphLen = 1200
	}
	if cfg.Segmenter.MaxChunkLen == 0 {
		cfg.Segmenter.MaxChunkLen = 1000
	}
	if cfg.Segmenter.MinChunkLen == 0 {
		cfg.Segmenter.MinChunkLen = 40
	}
	if cfg.Segmenter.Categories == nil {
		cfg.Segmenter.Categories = defaultCategories()
	}
	if cfg.Classifier.ConditionKeywords == nil {
		cfg.Classifier.ConditionKeywords = defaultConditionKeywords()
	}
	if cfg.Classifier.Interrogatives == nil {
		cfg.Classifier.Interrogatives = defaultInterrogatives()
	}
	applyRemoteDefaults(&cfg.Extractor, "https://api.openai.com/v1", "gpt-4o-mini")
	applyRemoteDefaults(&cfg.Embedder, "https://api.openai.com/v1", "text-embedding-3-small")
	applyRemoteDefaults(&cfg.Synthesizer, "https://api.openai.com/v1", "gpt-4o-mini")
	if cfg.Index.Type == "" {
		cfg.Index.Type = "memory"
	}
	if cfg.Index.UpsertBatchSize == 0 {
		cfg.Index.UpsertBatchSize = 100
	}
	if cfg.Index.SettleMillis == 0 {
		cfg.Index.SettleMillis = 1000
	}
	if cfg.Index.TopK == 0 {
		cfg.Index.TopK = 5
	}
	if cfg.Index.Type == "qdrant" && cfg.Index.Qdrant != nil {
		if cfg.Index.Qdrant.URL == "" {
			cfg.Index.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.Index.Qdrant.TimeoutSecs == 0 {
			cfg.Index.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Pipeline.SliceBatchSize == 0 {
		cfg.Pipeline.SliceBatchSize = 3
	}
	if cfg.Pipeline.Instructions == "" {
		cfg.Pipeline.Instructions = defaultInstructions
	}
}

func applyRemoteDefaults(rc *RemoteConfig, baseURL, model string) {
	if rc.BaseURL == "" {
		rc.BaseURL = baseURL
	}
	if rc.APIKeyEnv == "" {
		rc.APIKeyEnv = "OPENAI_API_KEY"
	}
	if rc.Model == "" {
		rc.Model = model
	}
	if rc.TimeoutSecs == 0 {
		rc.TimeoutSecs = 60
	}
	if rc.MaxRetries == 0 {
		rc.MaxRetries = 5
	}
}

const defaultInstructions = "Extract the full text content of this document. " +
	"Preserve headings, paragraph breaks and tables as plain text. " +
	"Keep all dates, deadlines, contact details and submission requirements verbatim."

func defaultCategories() []CategoryRule {
	return []CategoryRule{
		{
			Name: "TERMIN",
			Keywords: []string{
				"frist", "termin", "deadline", "abgabe", "spätestens",
				"einreichungsfrist", "due date", "submission date",
			},
			Pattern: `\d{1,2}\.\d{1,2}\.\d{2,4}`,
		},
		{
			Name: "KONTAKT",
			Keywords: []string{
				"kontakt", "ansprechpartner", "telefon", "e-mail", "email",
				"contact", "phone",
			},
			Pattern: `[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`,
		},
		{
			Name: "FORMALIA",
			Keywords: []string{
				"einreichung", "unterlagen", "formular", "schriftlich",
				"elektronisch", "submission format", "in writing",
			},
		},
	}
}

func defaultConditionKeywords() []string {
	return []string{
		"muss", "müssen", "darf", "dürfen", "soll", "sollen", "kann", "können",
		"ist erforderlich", "sind erforderlich", "erlaubt", "zulässig",
		"vor dem", "nach dem", "bis zum", "spätestens", "endet", "beginnt",
		"must", "shall", "may", "required", "allowed", "before", "after",
		"no later than", "ends", "begins",
	}
}

func defaultInterrogatives() []string {
	return []string{
		"wer", "was", "wann", "wo", "wie", "warum", "wieso", "welche",
		"welcher", "welches", "wofür", "womit",
		"who", "what", "when", "where", "how", "why", "which",
	}
}
