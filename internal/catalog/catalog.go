package catalog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"
)

const (
	initAttempts  = 3
	initRetryWait = 5 * time.Second
)

// Options wires the catalog to its external sources.
type Options struct {
	MoySklad        *MoySkladClient
	Embedder        Embedder
	SheetID         string
	DataDir         string
	RefreshInterval time.Duration
	HTTPClient      *http.Client
}

// Catalog holds the merged in-stock plant list together with its vector
// index and refreshes both on an interval.
type Catalog struct {
	mu      sync.RWMutex
	plants  []Plant
	vectors [][]float32

	moysklad    *MoySkladClient
	embedder    Embedder
	sheetID     string
	dataDir     string
	interval    time.Duration
	httpClient  *http.Client
	refreshedAt time.Time

	refreshTicker *time.Ticker
	stopChan      chan struct{}
}

func New(opts Options) *Catalog {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return &Catalog{
		moysklad:   opts.MoySklad,
		embedder:   opts.Embedder,
		sheetID:    opts.SheetID,
		dataDir:    opts.DataDir,
		interval:   interval,
		httpClient: client,
		stopChan:   make(chan struct{}),
	}
}

// Initialize builds the catalog, retrying a few times so a flaky source
// at startup does not kill the process.
func (c *Catalog) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(c.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", c.dataDir, err)
	}

	var lastErr error
	for attempt := 1; attempt <= initAttempts; attempt++ {
		if err := c.Refresh(ctx); err != nil {
			lastErr = err
			log.Error("Catalog initialization attempt %d/%d failed: %v", attempt, initAttempts, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(initRetryWait):
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("catalog initialization failed after %d attempts: %w", initAttempts, lastErr)
}

// Refresh runs the full pipeline: stock report, care sheet, merge,
// in-stock filter, vector index. The new data is swapped in atomically.
func (c *Catalog) Refresh(ctx context.Context) error {
	items, err := c.moysklad.FetchStock(ctx)
	if err != nil {
		return fmt.Errorf("stock fetch failed: %w", err)
	}
	stock := reduceStock(items)
	if _, err := writeSnapshot(c.dataDir, stockFilePrefix, stock); err != nil {
		log.Error("Failed to snapshot stock: %v", err)
	}
	cleanupOldFiles(c.dataDir, stockFilePrefix, maxOldStockFiles)

	plantRows := filterPlantRows(stock)

	sheetData, err := downloadSheet(ctx, c.httpClient, c.sheetID)
	if err != nil {
		return fmt.Errorf("care sheet fetch failed: %w", err)
	}
	sheetPlants, err := parseSheet(sheetData)
	if err != nil {
		return fmt.Errorf("care sheet parse failed: %w", err)
	}

	merged := mergeStockWithSheet(plantRows, sheetPlants)
	inStock := filterInStock(merged)
	if _, err := writeSnapshot(c.dataDir, filteredFilePrefix, inStock); err != nil {
		log.Error("Failed to snapshot filtered plants: %v", err)
	}
	cleanupOldFiles(c.dataDir, filteredFilePrefix, maxOldFilteredFiles)

	vectors, err := c.buildVectors(ctx, inStock)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.plants = inStock
	c.vectors = vectors
	c.refreshedAt = time.Now()
	c.mu.Unlock()

	log.Info("Catalog refreshed: %d plants indexed", len(inStock))
	return nil
}

// buildVectors reuses the persisted index when it is fresh for this
// plant set, otherwise re-embeds everything and saves the result.
func (c *Catalog) buildVectors(ctx context.Context, plants []Plant) ([][]float32, error) {
	if idx, err := loadIndex(c.dataDir); err == nil && idx.fresh(plants) {
		log.Info("Reusing vector index built at %s", idx.BuiltAt.Format(time.RFC3339))
		return idx.Vectors, nil
	}

	texts := make([]string, len(plants))
	for i, p := range plants {
		texts[i] = p.description()
	}
	log.Info("Embedding %d plant descriptions", len(texts))
	vectors := embedAll(ctx, c.embedder, texts)

	idx := &vectorIndex{BuiltAt: time.Now(), Plants: plants, Vectors: vectors}
	if err := saveIndex(c.dataDir, idx); err != nil {
		log.Error("Failed to persist vector index: %v", err)
	}
	return vectors, nil
}

// StartRefresher rebuilds the catalog on the configured interval until
// Stop. A failed refresh keeps the previous data.
func (c *Catalog) StartRefresher(ctx context.Context) {
	c.refreshTicker = time.NewTicker(c.interval)
	go func() {
		for {
			select {
			case <-c.refreshTicker.C:
				if err := c.Refresh(ctx); err != nil {
					log.Error("Scheduled catalog refresh failed: %v", err)
				}
			case <-c.stopChan:
				return
			}
		}
	}()
	log.Info("Catalog refresher started (every %s)", c.interval)
}

func (c *Catalog) Stop() {
	if c.refreshTicker != nil {
		c.refreshTicker.Stop()
	}
	close(c.stopChan)
}

// ScoredPlant is a vector search hit with its cosine similarity.
type ScoredPlant struct {
	Plant Plant
	Score float64
}

// VectorSearch embeds the query and returns the topK most similar
// plants.
func (c *Catalog) VectorSearch(ctx context.Context, query string, topK int) ([]ScoredPlant, error) {
	embedded, err := c.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}
	if len(embedded) == 0 {
		return nil, fmt.Errorf("query embedding returned no vector")
	}
	queryVec := embedded[0]

	c.mu.RLock()
	defer c.mu.RUnlock()

	scored := make([]ScoredPlant, 0, len(c.plants))
	for i, p := range c.plants {
		if i >= len(c.vectors) {
			break
		}
		scored = append(scored, ScoredPlant{Plant: p, Score: cosineSimilarity(queryVec, c.vectors[i])})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Size reports the number of indexed plants.
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.plants)
}

// RefreshedAt reports when the catalog was last rebuilt.
func (c *Catalog) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}

// SetData replaces the catalog contents directly, bypassing the refresh
// pipeline.
func (c *Catalog) SetData(plants []Plant, vectors [][]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plants = plants
	c.vectors = vectors
	c.refreshedAt = time.Now()
}
