package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trendcast/internal/config"
	"trendcast/internal/server"
	"trendcast/internal/util"
)

type serveFlags struct {
	port      int
	devMode   bool
	dataDir   string
	noBrowser bool
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the forecasting dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(f)
		},
	}
	cmd.Flags().IntVar(&f.port, "port", 0, "服务端口 (config.toml 优先；仅当未显式配置 port 时生效)")
	cmd.Flags().BoolVar(&f.devMode, "dev", false, "开发模式")
	cmd.Flags().StringVar(&f.dataDir, "data-dir", "", "数据目录 (覆盖配置文件)")
	cmd.Flags().BoolVar(&f.noBrowser, "no-browser", false, "启动后不自动打开浏览器")
	return cmd
}

func serve(f serveFlags) error {
	fmt.Println("==========================================")
	fmt.Println("  Trendcast - time series forecasting")
	fmt.Println("==========================================")

	cfg, info, err := config.LoadConfigWithInfo(configPath)
	if err != nil {
		log.Printf("加载配置失败，使用默认配置: %v", err)
		cfg = config.DefaultConfig()
		info = config.LoadConfigInfo{}
	}

	// 命令行参数覆盖配置
	if f.port > 0 && !info.PortSpecified {
		cfg.Server.Port = f.port
	}
	if f.devMode {
		cfg.Server.DevMode = true
	}
	if f.dataDir != "" {
		cfg.Data.DataDir = f.dataDir
	}
	if f.noBrowser {
		cfg.Server.OpenBrowser = false
	}

	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		log.Printf("创建数据目录失败: %v", err)
	} else {
		fmt.Printf("数据目录: %s\n", dataDir)
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	url := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("服务启动中，监听端口 %d ...\n", cfg.Server.Port)
		errCh <- srv.Run(addr)
	}()

	switch {
	case cfg.Server.DevMode:
		fmt.Printf("开发模式: 请访问 %s\n", url)
	case cfg.Server.OpenBrowser:
		fmt.Printf("正在打开浏览器: %s\n", url)
		if err := util.OpenBrowser(url); err != nil {
			fmt.Printf("无法自动打开浏览器，请手动访问: %s\n", url)
		}
	default:
		fmt.Printf("请访问 %s\n", url)
	}

	fmt.Println("\n按 Ctrl+C 停止服务...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			_ = srv.Shutdown(context.Background())
			return fmt.Errorf("服务启动失败: %w", err)
		}
		return nil
	case <-quit:
	}

	fmt.Println("\n正在关闭服务...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("关闭服务失败: %v", err)
	}
	return nil
}
