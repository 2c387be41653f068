package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"aaoifi-rag/internal/types"
	"aaoifi-rag/pkg/chain"
	cfgPkg "aaoifi-rag/pkg/config"
	"aaoifi-rag/pkg/documents"
	"aaoifi-rag/pkg/llm"
	"aaoifi-rag/pkg/scraper"
	"aaoifi-rag/pkg/store"
	"aaoifi-rag/server"
)

func main() {
	config, flags := parseFlags()

	if errs := config.Validate(); len(errs) > 0 {
		for _, err := range errs {
			color.Red("Invalid configuration: %v", err)
		}
		os.Exit(1)
	}

	if err := run(config, flags); err != nil {
		log.Fatal(err)
	}
}

// cliFlags holds the values that have no home in the config file.
type cliFlags struct {
	dataPath  string
	ingestURL string
}

func parseFlags() (*cfgPkg.Config, cliFlags) {
	var configPath string
	var flags cliFlags

	modelType := flag.String("model", "", "Model to use: 'bloom' for a locally served BLOOM 560M or 'llama2' for Ollama Llama 2")
	bloomURL := flag.String("bloom-url", "", "OpenAI-compatible base URL of the local BLOOM runtime")
	ollamaURL := flag.String("ollama-url", os.Getenv("OLLAMA_BASE_URL"), "Ollama API base URL (for Llama 2)")
	dbURL := flag.String("db-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string for the pgvector store")
	tableName := flag.String("table", "", "PostgreSQL table name")
	vectorDim := flag.Int("vector-dim", 0, "Vector dimension")
	batchSize := flag.Int("batch-size", 0, "Batch size for embedding and storage")
	maxTokens := flag.Int("max-tokens", 0, "Maximum tokens for LLM response")
	temperature := flag.Float64("temperature", 0, "Set the LLM temperature")
	stream := flag.Bool("stream", false, "Enable streaming responses on the websocket endpoint")
	port := flag.Int("port", 0, "Server port")

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&flags.dataPath, "data-path", "", "Path to the data JSON file")
	flag.StringVar(&flags.ingestURL, "ingest-url", "", "Standards website URL to scrape into the corpus")
	flag.Parse()

	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		color.Red("Error loading config: %v", err)
		os.Exit(1)
	}

	// Command line flags override the config file
	if *modelType != "" {
		config.LLM.ModelType = strings.ToLower(*modelType)
	}
	if *bloomURL != "" {
		config.LLM.BloomURL = *bloomURL
	}
	if *ollamaURL != "" {
		config.LLM.OllamaURL = *ollamaURL
		config.Embedding.BaseURL = *ollamaURL
	}
	if *dbURL != "" {
		config.Database.URL = *dbURL
	}
	if *tableName != "" {
		config.Database.TableName = *tableName
	}
	if *vectorDim != 0 {
		config.Database.VectorDim = *vectorDim
	}
	if *batchSize != 0 {
		config.Database.BatchSize = *batchSize
	}
	if *maxTokens != 0 {
		config.LLM.MaxTokens = *maxTokens
	}
	if *temperature != 0 {
		config.LLM.Temperature = *temperature
	}
	if *stream {
		config.Server.Streaming = true
	}
	if *port != 0 {
		config.Server.Port = *port
	}
	if flags.dataPath == "" {
		flags.dataPath = config.Corpus.DataPath
	}

	return config, flags
}

func printModelTable(selected string) {
	color.Cyan("\nAvailable Models")
	color.Cyan("%-10s %s", "Model ID", "Description")

	available := llm.ListAvailableModels()
	ids := make([]string, 0, len(available))
	for id := range available {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		fmt.Printf("%-10s %s\n", id, available[id])
	}

	color.Cyan("\nUsing model: %s\n", selected)
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// loadCorpus reads the corpus file into the manager. A missing or corrupt
// file is reported but never fatal; the server still starts and the chains
// answer from the model alone.
func loadCorpus(manager *documents.Manager, dataPath string) {
	if dataPath == "" {
		color.Yellow("Warning: No data path provided. Document processing skipped.")
		return
	}

	count, err := manager.LoadFile(dataPath)
	if err != nil {
		color.Red("Failed to load documents from %s: %v", dataPath, err)
		return
	}
	color.Green("Loaded %d document chunks from %s", count, dataPath)
}

// buildRetriever embeds and indexes the loaded corpus. With no documents,
// or when indexing fails, it returns nil and the chains run without
// retrieved context.
func buildRetriever(ctx context.Context, manager *documents.Manager, batchSize int) types.Retriever {
	if len(manager.Documents()) == 0 {
		return nil
	}

	bar := getProgressBar(len(manager.Documents()), "Building vector store...")
	err := manager.BuildIndex(ctx, batchSize, func(done int) {
		bar.Set(done)
	})
	bar.Finish()
	if err != nil {
		color.Red("Failed to build vector store: %v", err)
		return nil
	}

	color.Green("Successfully built vector store (%d documents)", len(manager.Documents()))
	return manager
}

func run(config *cfgPkg.Config, flags cliFlags) error {
	ctx := context.Background()

	printModelTable(config.LLM.ModelType)

	color.Blue("Setting up %s model...", config.LLM.ModelType)
	modelManager, err := llm.NewModelManager(llm.ModelConfig{
		ModelType:   config.LLM.ModelType,
		Model:       config.LLM.Model,
		OllamaURL:   config.LLM.OllamaURL,
		BloomURL:    config.LLM.BloomURL,
		MaxTokens:   config.LLM.MaxTokens,
		Temperature: config.LLM.Temperature,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize model manager: %v", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   config.Embedding.Model,
		BaseURL: config.Embedding.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	var vectorStore types.VectorStore
	if config.Database.URL != "" {
		vectorStore, err = store.NewPgVectorStore(store.PgVectorConfig{
			ConnString: config.Database.URL,
			TableName:  config.Database.TableName,
			VectorDim:  config.Database.VectorDim,
			BatchSize:  config.Database.BatchSize,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize vector store: %v", err)
		}
	} else {
		vectorStore = store.NewMemoryStore()
	}
	defer vectorStore.Close()

	color.Blue("Setting up document manager...")
	manager := documents.NewManager(embedder, vectorStore)

	loadCorpus(manager, flags.dataPath)

	if flags.ingestURL != "" {
		var scrapedCount int32
		spinner := getSpinner("Scraping standards pages...")
		s, err := scraper.NewWithConfig(scraper.ScraperConfig{
			BaseURL:           flags.ingestURL,
			MaxDepth:          config.Scraper.MaxDepth,
			RateLimit:         config.Scraper.RateLimit,
			ChunkSize:         config.Scraper.ChunkSize,
			ChunkOverlap:      config.Scraper.ChunkOverlap,
			IgnorePatterns:    config.Scraper.IgnorePatterns,
			AllowedExtensions: config.Scraper.AllowedExtensions,
			OnProgress: func(url string) {
				spinner.Add(1)
				atomic.AddInt32(&scrapedCount, 1)
			},
		})
		if err != nil {
			return fmt.Errorf("failed to initialize scraper: %v", err)
		}

		docs, err := s.Scrape(flags.ingestURL)
		spinner.Finish()
		if err != nil {
			color.Red("Failed to scrape %s: %v", flags.ingestURL, err)
		} else {
			manager.AddDocuments(docs)
			color.Green("Scraped %d pages into %d chunks", atomic.LoadInt32(&scrapedCount), len(docs))
		}
	}

	retriever := buildRetriever(ctx, manager, config.Database.BatchSize)

	color.Blue("Initializing agent chain...")
	agent := chain.New(modelManager.LLM(), retriever, chain.Config{
		RetrievalLimit: config.Corpus.RetrievalLimit,
		SnippetLength:  config.Corpus.SnippetLength,
		MaxTokens:      config.LLM.MaxTokens,
		Temperature:    config.LLM.Temperature,
	})

	srv := server.New(server.Config{
		Port:      config.Server.Port,
		Streaming: config.Server.Streaming,
	}, agent)

	color.Green("\nServer running at http://localhost:%d", config.Server.Port)
	color.White("Press Ctrl+C to stop")

	return srv.Start()
}
