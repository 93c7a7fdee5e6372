package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration for the pipeline. Values come from the
// environment, optionally seeded from a .env file in the working directory.
type Config struct {
	// FECAPIKey is the api.open.fec.gov key injected into every fetch.
	FECAPIKey string

	// ProjectID is the Google Cloud project hosting Firestore and BigQuery.
	ProjectID string

	// ArchiveBucket is the GCS bucket for raw snapshot archives. Optional;
	// archiving is skipped when empty.
	ArchiveBucket string

	// BigQueryDataset is the dataset for the published recipient export.
	// Optional; export is skipped when empty.
	BigQueryDataset string

	// CyclePeriod is the two-year transaction period to fetch, e.g. "2024".
	CyclePeriod string

	// EfiledMinDate bounds the efiled feed, e.g. "2023-01-01".
	EfiledMinDate string
}

// Load reads configuration from the environment. A missing .env file is not
// an error; missing required variables are.
func Load() (*Config, error) {
	_ = godotenv.Load()

	apiKey := os.Getenv("FEC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("FEC_API_KEY is not set")
	}
	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if projectID == "" {
		return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT is not set")
	}

	cfg := &Config{
		FECAPIKey:       apiKey,
		ProjectID:       projectID,
		ArchiveBucket:   os.Getenv("ARCHIVE_BUCKET"),
		BigQueryDataset: os.Getenv("BQ_DATASET"),
		CyclePeriod:     os.Getenv("CYCLE_PERIOD"),
		EfiledMinDate:   os.Getenv("EFILED_MIN_DATE"),
	}
	if cfg.CyclePeriod == "" {
		cfg.CyclePeriod = "2024"
	}
	if cfg.EfiledMinDate == "" {
		cfg.EfiledMinDate = "2023-01-01"
	}
	return cfg, nil
}
