package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yqhp/loadtest/api/rest"
	"yqhp/loadtest/internal/config"
	"yqhp/loadtest/internal/master"
	"yqhp/loadtest/pkg/logger"
)

// masterFlags master start 的专用 flag
var masterFlags = []flagOverride{
	{flag: "address", path: "master.address"},
	{flag: "health-interval", path: "master.health_interval"},
	{flag: "cors", path: "master.enable_cors"},
}

// masterCmd 是 master 子命令
var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "管理 Master 节点",
	Long:  `Master 节点负责 Worker 注册、健康检查、测试命令广播和指标聚合。`,
}

// masterStartCmd 是 master start 子命令
var masterStartCmd = &cobra.Command{
	Use:   "start",
	Short: "启动 Master 节点",
	Long: `启动 Master 节点并提供 REST API：

  POST /api/start           广播测试配置
  POST /api/stop            广播停止
  POST /api/reset           清空统计并广播重置
  GET  /api/progress        聚合进度
  GET  /api/workers/status  所有 Worker 的状态`,
	Example: `  # 使用默认配置启动
  loadtest master start

  # 指定监听地址
  loadtest master start --address :9090

  # 使用配置文件
  loadtest master start --config loadtest.yaml`,
	RunE: runMasterStart,
}

func init() {
	rootCmd.AddCommand(masterCmd)
	masterCmd.AddCommand(masterStartCmd)

	masterStartCmd.Flags().String("address", ":8080", "HTTP 服务地址")
	masterStartCmd.Flags().Duration("health-interval", 0, "Worker 状态轮询周期")
	masterStartCmd.Flags().Bool("cors", false, "启用 CORS")
}

func runMasterStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, masterFlags)
	if err != nil {
		return err
	}
	defer logger.Sync()

	m := master.New(masterConfig(cfg), nil, logger.L())
	server := rest.NewMasterServer(m, &rest.Config{
		Address:    cfg.Master.Address,
		EnableCORS: cfg.Master.EnableCORS,
	}, logger.L())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printBanner(
		"Master 节点",
		"HTTP 地址: "+cfg.Master.Address,
		"健康检查周期: "+cfg.Master.HealthInterval.String(),
	)

	if err := m.Start(ctx); err != nil {
		return fmt.Errorf("启动 Master 失败: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		if !quiet {
			fmt.Fprintln(os.Stderr, "\n正在关闭 Master...")
		}
	case err := <-errCh:
		_ = m.Stop(context.Background())
		return fmt.Errorf("HTTP 服务异常退出: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("关闭 HTTP 服务失败", zap.Error(err))
	}
	if err := m.Stop(shutdownCtx); err != nil && !errors.Is(err, master.ErrNotStarted) {
		return fmt.Errorf("停止 Master 失败: %w", err)
	}
	logger.Info("Master 已停止")
	return nil
}

func masterConfig(cfg *config.Config) *master.Config {
	return &master.Config{
		HealthInterval:    cfg.Master.HealthInterval,
		AggregateInterval: cfg.Master.AggregateInterval,
		RequestTimeout:    cfg.Master.RequestTimeout,
	}
}
