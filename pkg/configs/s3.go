package configs

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// S3Config MinIO S3存储配置.
type S3Config struct {
	Endpoint        string               `mapstructure:"endpoint"          rule:"required"`
	AccessKeyID     string               `mapstructure:"access_key_id"`
	SecretAccessKey string               `mapstructure:"secret_access_key"`
	UseSSL          bool                 `mapstructure:"use_ssl"`
	BucketName      string               `mapstructure:"bucket_name"       rule:"required"`
	Region          string               `mapstructure:"region"`
	PublicURL       string               `mapstructure:"public_url"` // 拼接 remote_url 的前缀，默认使用 endpoint
	CreateBucket    bool                 `mapstructure:"create_bucket"`
	Timeout         time.Duration        `mapstructure:"timeout"           rule:"gt=0"`
	Breaker         CircuitBreakerConfig `mapstructure:"breaker"`
}

const (
	DefaultS3Endpoint        = "localhost:9000" // 默认S3端点
	DefaultS3AccessKeyID     = "minioadmin"     // 默认访问密钥ID
	DefaultS3SecretAccessKey = "minioadmin"     // 默认秘密访问密钥
	DefaultS3UseSSL          = false            // 默认是否使用SSL
	DefaultS3BucketName      = "syncvault"      // 默认存储桶名称
	DefaultS3Region          = "us-east-1"      // 默认区域
	DefaultS3Timeout         = 30 * time.Second // 单次远端调用超时
)

// GetEndpointURL 获取完整的端点URL.
func (c *S3Config) GetEndpointURL() string {
	if c.PublicURL != "" {
		return c.PublicURL
	}

	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s", scheme, c.Endpoint)
}

// setDefaults 设置 S3 配置的默认值.
func (c *S3Config) setDefaults(v *viper.Viper) {
	v.SetDefault("s3.endpoint", DefaultS3Endpoint)
	v.SetDefault("s3.access_key_id", DefaultS3AccessKeyID)
	v.SetDefault("s3.secret_access_key", DefaultS3SecretAccessKey)
	v.SetDefault("s3.use_ssl", DefaultS3UseSSL)
	v.SetDefault("s3.bucket_name", DefaultS3BucketName)
	v.SetDefault("s3.region", DefaultS3Region)
	v.SetDefault("s3.public_url", "")
	v.SetDefault("s3.create_bucket", true)
	v.SetDefault("s3.timeout", DefaultS3Timeout)

	c.Breaker.setDefaults(v, "s3.breaker")
	// 远端存储熔断默认开启，避免远端不可用时复制 worker 被长时间占用
	v.SetDefault("s3.breaker.enabled", true)
	v.SetDefault("s3.breaker.min_requests", DefaultS3BreakerMinRequests)
}

// DefaultS3BreakerMinRequests 远端熔断最少统计请求数.
const DefaultS3BreakerMinRequests = 5
