/*
 * @Description: 青澜媒体平台入口
 * @Author: 青澜
 * @Date: 2025-09-18 10:02:41
 * @LastEditTime: 2026-04-09 11:15:28
 * @LastEditors: 青澜
 */
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/qinglan-dev/qinglan-app/cmd/server"
)

func main() {
	app, cleanup, err := server.NewApp()
	if err != nil {
		log.Fatalf("应用初始化失败: %v", err)
	}
	defer cleanup()

	// 收到终止信号时优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("收到终止信号，开始停机...")
		app.Stop()
	}()

	if err := app.Run(); err != nil {
		log.Fatalf("应用运行失败: %v", err)
	}
}
