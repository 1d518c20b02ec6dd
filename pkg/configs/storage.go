package configs

import (
	"github.com/spf13/viper"
)

const (
	DefaultStorageRoot = "storage/" // 本地文件根目录
	DefaultDirPerm     = 0o755
)

// StorageConfig 本地文件存储配置.
type StorageConfig struct {
	Root string `mapstructure:"root" rule:"required"`
	// Fsync 写入完成后是否 fsync，关闭后崩溃可能丢失刚上传的数据
	Fsync bool `mapstructure:"fsync"`
}

func (c *StorageConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("storage.root", DefaultStorageRoot)
	v.SetDefault("storage.fsync", true)
}
