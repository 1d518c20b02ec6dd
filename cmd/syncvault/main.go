// Package main 启动应用程序
package main

import (
	"os"

	"github.com/yeisme/syncvault/pkg/cmd"
)

//	@title			SyncVault API
//	@version		1.0
//	@description	SyncVault 本地优先的文件存储服务：上传即落盘，后台异步复制到对象存储，定时对账回收孤儿文件。

//	@license.name	MIT
//	@license.url	https://opensource.org/license/mit/

//	@contact.name	yeisme

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
