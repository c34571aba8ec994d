package config

import "fmt"

// StorageConfig selects where uploaded alert media is kept. Cloud
// providers take credentials from their SDK default chain.
type StorageConfig struct {
	Provider string          `yaml:"provider"`
	Local    *LocalMediaDir  `yaml:"local"`
	AWS      *S3MediaBucket  `yaml:"aws"`
	GCP      *GCSMediaBucket `yaml:"gcp"`
}

type LocalMediaDir struct {
	BasePath string `yaml:"base_path"`
	BaseURL  string `yaml:"base_url"`
}

type S3MediaBucket struct {
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	CDNDomain string `yaml:"cdn_domain"`
}

type GCSMediaBucket struct {
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
	CDNDomain       string `yaml:"cdn_domain"`
}

func (s *StorageConfig) validate() error {
	switch s.Provider {
	case "local", "":
		if s.Local.BasePath == "" {
			return fmt.Errorf("MEDIA_LOCAL_PATH must not be empty")
		}
	case "s3":
		if s.AWS.Bucket == "" {
			return fmt.Errorf("MEDIA_S3_BUCKET is required for the s3 provider")
		}
	case "gcs":
		if s.GCP.Bucket == "" {
			return fmt.Errorf("MEDIA_GCS_BUCKET is required for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown MEDIA_PROVIDER %q", s.Provider)
	}
	return nil
}

func loadStorageConfig(baseURL string) *StorageConfig {
	return &StorageConfig{
		Provider: getEnv("MEDIA_PROVIDER", "local"),
		Local: &LocalMediaDir{
			BasePath: getEnv("MEDIA_LOCAL_PATH", "./uploads"),
			BaseURL:  getEnv("MEDIA_LOCAL_URL", baseURL+"/uploads"),
		},
		AWS: &S3MediaBucket{
			Region:    getEnv("AWS_REGION", "us-east-1"),
			Bucket:    getEnv("MEDIA_S3_BUCKET", ""),
			CDNDomain: getEnv("MEDIA_S3_CDN_DOMAIN", ""),
		},
		GCP: &GCSMediaBucket{
			Bucket:          getEnv("MEDIA_GCS_BUCKET", ""),
			CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
			CDNDomain:       getEnv("MEDIA_GCS_CDN_DOMAIN", ""),
		},
	}
}
