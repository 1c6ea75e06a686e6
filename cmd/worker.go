package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yqhp/loadtest/api/rest"
	"yqhp/loadtest/internal/config"
	"yqhp/loadtest/internal/target"
	"yqhp/loadtest/internal/worker"
	"yqhp/loadtest/pkg/logger"
)

// workerFlags worker start 的专用 flag
var workerFlags = []flagOverride{
	{flag: "address", path: "worker.address"},
	{flag: "advertise", path: "worker.advertise_url"},
	{flag: "master", path: "worker.master_url"},
}

// workerCmd 是 worker 子命令
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "管理 Worker 节点",
	Long:  `Worker 节点向 Master 注册，收到测试配置后按爬坡计划运行虚拟用户并回传指标。`,
}

// workerStartCmd 是 worker start 子命令
var workerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "启动 Worker 节点",
	Example: `  # 连接本机 Master
  loadtest worker start

  # 指定监听地址、对外地址和 Master 地址
  loadtest worker start --address :9091 --advertise http://10.0.0.5:9091 --master http://10.0.0.1:8080`,
	RunE: runWorkerStart,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.AddCommand(workerStartCmd)

	workerStartCmd.Flags().String("address", ":8081", "HTTP 服务地址")
	workerStartCmd.Flags().String("advertise", "", "注册给 Master 的本机地址")
	workerStartCmd.Flags().String("master", "", "Master 节点地址")
}

func runWorkerStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, workerFlags)
	if err != nil {
		return err
	}
	defer logger.Sync()

	node := worker.NewNode(nodeConfig(cfg), nil, nil, logger.L())
	server := rest.NewWorkerServer(node, &rest.Config{Address: cfg.Worker.Address}, logger.L())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printBanner(
		"Worker 节点",
		"HTTP 地址: "+cfg.Worker.Address,
		"对外地址: "+cfg.Worker.AdvertiseURL,
		"Master 地址: "+cfg.Worker.MasterURL,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 注册失败只记录日志，继续提供服务
	regCtx, cancel := context.WithTimeout(ctx, cfg.Worker.RequestTimeout)
	_ = node.Register(regCtx)
	cancel()

	select {
	case <-ctx.Done():
		if !quiet {
			fmt.Fprintln(os.Stderr, "\n正在关闭 Worker...")
		}
	case err := <-errCh:
		node.Stop()
		return fmt.Errorf("HTTP 服务异常退出: %w", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := node.Shutdown(shutdownCtx); err != nil {
		logger.Warn("等待任务退出超时", zap.Error(err))
	}
	if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("关闭 HTTP 服务失败", zap.Error(err))
	}
	logger.Info("Worker 已停止")
	return nil
}

func nodeConfig(cfg *config.Config) *worker.NodeConfig {
	return &worker.NodeConfig{
		AdvertiseURL:   cfg.Worker.AdvertiseURL,
		MasterURL:      cfg.Worker.MasterURL,
		RequestTimeout: cfg.Worker.RequestTimeout,
		FlushInterval:  cfg.Worker.FlushInterval,
		Scheduler: &worker.Options{
			RampInitialDelay: cfg.Worker.RampInitialDelay,
			RampInterval:     cfg.Worker.RampInterval,
			TimeUnit:         time.Second,
			TeardownTimeout:  shutdownTimeout,
		},
		Target: &target.Config{
			RequestTimeout:  cfg.Target.RequestTimeout,
			MaxConnsPerHost: cfg.Target.MaxConnsPerHost,
			AssetSize:       cfg.Target.AssetSize,
		},
	}
}
