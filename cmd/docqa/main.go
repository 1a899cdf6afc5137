package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"docqa/internal/classifier"
	"docqa/internal/config"
	"docqa/internal/embedding"
	"docqa/internal/extract"
	"docqa/internal/index"
	"docqa/internal/pdf"
	"docqa/internal/pipeline"
	"docqa/internal/segmenter"
	"docqa/internal/server"
	"docqa/internal/splitter"
	"docqa/internal/synthesis"
	"docqa/internal/vectorindex"
	"docqa/internal/vectorindex/memory"
	"docqa/internal/vectorindex/qdrant"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/docqa/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Assemble components
	extractor, err := extract.NewClient(extract.Config{
		BaseURL:    cfg.Extractor.BaseURL,
		APIKeyEnv:  cfg.Extractor.APIKeyEnv,
		Model:      cfg.Extractor.Model,
		Timeout:    time.Duration(cfg.Extractor.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Extractor.MaxRetries,
	})
	if err != nil {
		log.Fatalf("extractor init failed: %v", err)
	}

	embedder, err := embedding.NewClient(embedding.Config{
		BaseURL:    cfg.Embedder.BaseURL,
		APIKeyEnv:  cfg.Embedder.APIKeyEnv,
		Model:      cfg.Embedder.Model,
		Timeout:    time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Embedder.MaxRetries,
	})
	if err != nil {
		log.Fatalf("embedder init failed: %v", err)
	}

	synthesizer, err := synthesis.NewClient(synthesis.Config{
		BaseURL:    cfg.Synthesizer.BaseURL,
		APIKeyEnv:  cfg.Synthesizer.APIKeyEnv,
		Model:      cfg.Synthesizer.Model,
		Timeout:    time.Duration(cfg.Synthesizer.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Synthesizer.MaxRetries,
	})
	if err != nil {
		log.Fatalf("synthesizer init failed: %v", err)
	}

	var idx vectorindex.Index
	switch cfg.Index.Type {
	case "memory", "":
		idx = memory.NewStore()
	case "qdrant":
		if cfg.Index.Qdrant == nil {
			log.Fatalf("qdrant config missing")
		}
		idx = qdrant.NewStore(qdrant.Config{
			URL:     cfg.Index.Qdrant.URL,
			APIKey:  cfg.Index.Qdrant.APIKey,
			Timeout: time.Duration(cfg.Index.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		log.Fatalf("unknown index type: %s", cfg.Index.Type)
	}

	sessions := index.NewManager(idx, embedder,
		cfg.Index.UpsertBatchSize,
		time.Duration(cfg.Index.SettleMillis)*time.Millisecond,
		cfg.Index.TopK)

	orch := pipeline.New(
		splitter.New(pdf.NewReader(), cfg.Splitter.ChunkPages, cfg.Splitter.OverlapPages, cfg.Splitter.ThresholdPages),
		segmenter.New(cfg.Segmenter),
		classifier.New(cfg.Classifier),
		extractor,
		embedder,
		synthesizer,
		sessions,
		pipeline.Config{
			SliceBatchSize: cfg.Pipeline.SliceBatchSize,
			TopK:           cfg.Index.TopK,
			Instructions:   cfg.Pipeline.Instructions,
			Debug:          cfg.Pipeline.Debug,
		},
	)

	srv := server.New(orch,
		int64(cfg.Server.MaxUploadMB)<<20,
		int64(cfg.Server.MaxFileSizeMB)<<20)

	log.Printf("listening on %s", cfg.Server.Addr)
	if err := http.ListenAndServe(cfg.Server.Addr, srv.Routes()); err != nil {
		log.Fatal(err)
	}
}
