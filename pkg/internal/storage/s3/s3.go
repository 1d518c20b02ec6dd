// Package s3 处理远端对象存储操作，所有调用经过熔断器并带有超时.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sony/gobreaker"

	"github.com/yeisme/syncvault/pkg/configs"
	nlog "github.com/yeisme/syncvault/pkg/log"
)

// ErrUnavailable 熔断器处于打开状态，远端暂时不可用.
var ErrUnavailable = errors.New("remote store unavailable")

// Object 远端对象的列表信息.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Client 包装 MinIO 客户端，固定到一个 bucket.
type Client struct {
	*minio.Client

	bucket  string
	baseURL string
	region  string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

// New 初始化 MinIO 客户端；不会访问网络，bucket 检查见 EnsureBucket.
func New(cfg *configs.S3Config) (*Client, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	// 允许用户传完整 schema endpoint（http:// 或 https://）
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo("syncvault", configs.AppVersion)

	baseURL := cfg.PublicURL
	if baseURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}

		baseURL = scheme + "://" + endpoint
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = configs.DefaultS3Timeout
	}

	return &Client{
		Client:  cli,
		bucket:  cfg.BucketName,
		baseURL: baseURL,
		region:  cfg.Region,
		timeout: timeout,
		breaker: newBreaker("s3:"+cfg.BucketName, &cfg.Breaker),
	}, nil
}

// newBreaker 按配置创建熔断器，未启用时返回 nil.
func newBreaker(name string, cfg *configs.CircuitBreakerConfig) *gobreaker.CircuitBreaker {
	if !cfg.Enabled {
		return nil
	}

	l := nlog.Component("s3")

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequestsInHalf,
		Interval:    cfg.Interval(),
		Timeout:     cfg.OpenTimeout(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}

			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRate
		},
		// 调用方取消不算远端故障
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
}

// call 在熔断器保护下执行 fn.
func (c *Client) call(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return err
}

// Bucket 返回 bucket 名称.
func (c *Client) Bucket() string {
	return c.bucket
}

// ObjectURL 返回对象的访问地址 <endpoint>/<bucket>/<key>.
func (c *Client) ObjectURL(key string) string {
	u, err := url.JoinPath(c.baseURL, c.bucket, key)
	if err != nil {
		return fmt.Sprintf("%s/%s/%s", c.baseURL, c.bucket, key)
	}

	return u
}

// EnsureBucket 检查 bucket，不存在时创建.
func (c *Client) EnsureBucket(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	exists, err := c.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", c.bucket, err)
	}

	if exists {
		return nil
	}

	if err := c.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: c.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", c.bucket, err)
	}

	nlog.Logger().Info().Str("bucket", c.bucket).Msg("bucket created")

	return nil
}

// Put 上传对象.
func (c *Client) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.call(func() error {
		_, err := c.PutObject(ctx, c.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
		if err != nil {
			return fmt.Errorf("put object %s: %w", key, err)
		}

		return nil
	})
}

// Remove 删除对象，对象不存在视为成功.
func (c *Client) Remove(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.call(func() error {
		err := c.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{})
		if err != nil && minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return fmt.Errorf("remove object %s: %w", key, err)
		}

		return nil
	})
}

// List 列出 bucket 中的全部对象；fn 返回错误时停止.
// 整个列举过程不设单独超时，由调用方 ctx 控制.
func (c *Client) List(ctx context.Context, fn func(Object) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	return c.call(func() error {
		for obj := range c.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Recursive: true}) {
			if obj.Err != nil {
				return fmt.Errorf("list objects: %w", obj.Err)
			}

			if err := fn(Object{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified}); err != nil {
				return err
			}
		}

		return ctx.Err()
	})
}

// HealthCheck 通过检查 bucket 验证连接.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ok, err := c.BucketExists(ctx, c.bucket)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("bucket %s does not exist", c.bucket)
	}

	return nil
}

// BreakerState 返回熔断器状态，未启用时为 "disabled".
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}

	return c.breaker.State().String()
}

// Close 接口兼容，minio 客户端无需关闭.
func (c *Client) Close() error {
	return nil
}
