// Package cmd 提供 loadtest CLI 的命令实现
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"yqhp/loadtest/internal/config"
	"yqhp/loadtest/pkg/logger"
)

const (
	// Version 是当前版本号
	Version = "0.1.0"
	// Banner 是启动时显示的 ASCII 艺术
	Banner = `
   _                 _ _            _
  | | ___   __ _  __| | |_ ___  ___| |_
  | |/ _ \ / _' |/ _' | __/ _ \/ __| __|
  | | (_) | (_| | (_| | ||  __/\__ \ |_
  |_|\___/ \__,_|\__,_|\__\___||___/\__|  %s
`

	// shutdownTimeout 收到退出信号后等待组件停止的最长时间
	shutdownTimeout = 10 * time.Second
)

var (
	// 全局配置
	cfgFile   string
	debug     bool
	quiet     bool
	overrides map[string]string
)

// rootCmd 是根命令
var rootCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "分布式压测工具",
	Long: `loadtest 是一个分布式压测工具。
Master 节点接收测试配置并广播给所有 Worker，Worker 按爬坡计划启动虚拟用户，
并把每次请求的耗时回传给 Master 聚合。`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// 全局 flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "启用调试日志")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "静默模式")
	rootCmd.PersistentFlags().StringToStringVar(&overrides, "set", nil, "覆盖配置项，如 --set worker.flush_interval=2s")

	// 禁用默认的 completion 命令
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// 自定义版本模板
	rootCmd.SetVersionTemplate(fmt.Sprintf(Banner, Version) + "\n")
}

// GetRootCmd 返回根命令（用于测试）
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// flagOverride 把一个命令行 flag 映射到配置路径
type flagOverride struct {
	flag string
	path string
}

// collectOverrides 合并 --set 与已设置的专用 flag，专用 flag 优先
func collectOverrides(cmd *cobra.Command, mapping []flagOverride) map[string]string {
	args := make(map[string]string, len(overrides)+len(mapping)+1)
	for k, v := range overrides {
		args[k] = v
	}
	for _, m := range mapping {
		if f := cmd.Flags().Lookup(m.flag); f != nil && f.Changed {
			args[m.path] = f.Value.String()
		}
	}
	if debug {
		args["logging.level"] = "debug"
	}
	return args
}

// loadConfig 按 默认值 < 配置文件 < 环境变量 < 命令行 的顺序加载配置并初始化日志
func loadConfig(cmd *cobra.Command, mapping []flagOverride) (*config.Config, error) {
	loader := config.NewLoader().WithCmdArgs(collectOverrides(cmd, mapping))
	if cfgFile != "" {
		loader = loader.WithConfigPath(cfgFile)
	}

	cfg, err := config.LoadAndValidate(loader)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	logger.Init(cfg.Logging.LoggerConfig())
	return cfg, nil
}

func printBanner(lines ...string) {
	if quiet {
		return
	}
	fmt.Printf(Banner, Version)
	fmt.Println()
	for _, line := range lines {
		fmt.Println("  " + line)
	}
	fmt.Println()
}
