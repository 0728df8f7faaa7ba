package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_parseFlags_OverridesDefaults(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"testbin",
		"-a", ":9090",
		"-d", "postgres://u:p@db/x",
		"-s", "flagsecret",
		"-i", "uid-42",
		"-u", "minio",
		"-p", "miniopass",
		"-b", "photos",
		"-g", "eu-west-1",
		"-e", "http://minio:9000/",
		"-l", "https://img.example",
		"-t", "30",
	}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, ":9090", cfg.EndpointAddrHTTP)
	assert.Equal(t, "postgres://u:p@db/x", cfg.DatabaseDSN)
	assert.Equal(t, "flagsecret", cfg.SecretKey)
	assert.Equal(t, "uid-42", cfg.AdminUID)
	assert.Equal(t, "minio", cfg.S3RootUser)
	assert.Equal(t, "miniopass", cfg.S3RootPassword)
	assert.Equal(t, "photos", cfg.S3Bucket)
	assert.Equal(t, "eu-west-1", cfg.S3Region)
	assert.Equal(t, "http://minio:9000/", cfg.S3BaseEndpoint)
	assert.Equal(t, "https://img.example", cfg.S3PublicBaseURL)
	assert.Equal(t, 30*time.Minute, cfg.PresignTTL)
}

func Test_parseFlags_IgnoresForeignFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"testbin", "-config", "conf.json", "-a", ":7070"}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, ":7070", cfg.EndpointAddrHTTP)
}
