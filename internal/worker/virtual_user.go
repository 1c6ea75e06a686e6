package worker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"yqhp/loadtest/internal/target"
	"yqhp/loadtest/pkg/logger"
	"yqhp/loadtest/pkg/types"
)

// ErrInvalidTarget 表示任务配置中的被测地址不可用。
var ErrInvalidTarget = errors.New("invalid target url")

// 每轮脚本中随机次数的取值范围，左闭右开。
const (
	minLinks        = 5
	maxLinks        = 8
	minPublicFetch  = 9
	maxPublicFetch  = 11
	noResponsePause = 200 * time.Millisecond
)

// TargetAPI 虚拟用户脚本使用的被测应用接口，由 target.Client 实现。
type TargetAPI interface {
	UserExists(ctx context.Context, email string) (bool, error)
	Register(ctx context.Context, email string) error
	UpdateProfile(ctx context.Context, email string, p target.Profile) error
	UploadPicture(ctx context.Context, email string, image []byte) error
	ClearLinks(ctx context.Context, email string) error
	AddLink(ctx context.Context, email string, link target.Link) error
	FetchPublicView(ctx context.Context, email string) (*target.PublicView, error)
	ClickLink(ctx context.Context, email string, index int) error
}

// VirtualUser 模拟一个真实用户，循环执行固定脚本直到被取消。
type VirtualUser struct {
	id        int
	email     string
	api       TargetAPI
	assetSize int
	pause     time.Duration
	logger    *zap.Logger
}

// NewVirtualUser 创建虚拟用户，并为其生成唯一身份。
func NewVirtualUser(id int, api TargetAPI, assetSize int, l *zap.Logger) *VirtualUser {
	email := target.NewEmail()
	return &VirtualUser{
		id:        id,
		email:     email,
		api:       api,
		assetSize: assetSize,
		pause:     noResponsePause,
		logger:    logger.OrDefault(l).With(zap.Int("vu", id), zap.String("email", email)),
	}
}

// Email 返回虚拟用户的身份。
func (v *VirtualUser) Email() string {
	return v.email
}

// Run 循环执行脚本。某一步没有得到响应时放弃本轮，短暂等待后重新开始。
func (v *VirtualUser) Run(ctx context.Context) {
	for ctx.Err() == nil {
		err := v.Iterate(ctx)
		if err == nil || ctx.Err() != nil {
			continue
		}
		v.logger.Debug("本轮脚本中断", zap.Error(err))
		select {
		case <-ctx.Done():
		case <-time.After(v.pause):
		}
	}
}

// Iterate 执行一轮脚本，每一步之间检查取消。
// 被测应用返回的错误状态码已计入指标，不会中断本轮；只有无响应才返回错误。
func (v *VirtualUser) Iterate(ctx context.Context) error {
	exists, err := v.api.UserExists(ctx, v.email)
	if err := v.check(err); err != nil {
		return err
	}
	if !exists {
		if err := v.check(v.api.Register(ctx, v.email)); err != nil {
			return err
		}
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := v.check(v.api.UpdateProfile(ctx, v.email, target.NewProfile())); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := v.check(v.api.UploadPicture(ctx, v.email, target.NewImage(v.assetSize))); err != nil {
		return err
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := v.check(v.api.ClearLinks(ctx, v.email)); err != nil {
		return err
	}
	for i, n := 0, target.RandRange(minLinks, maxLinks); i < n && ctx.Err() == nil; i++ {
		if err := v.check(v.api.AddLink(ctx, v.email, target.NewLink())); err != nil {
			return err
		}
	}

	var last *target.PublicView
	for i, n := 0, target.RandRange(minPublicFetch, maxPublicFetch); i < n && ctx.Err() == nil; i++ {
		view, err := v.api.FetchPublicView(ctx, v.email)
		if err := v.check(err); err != nil {
			return err
		}
		if view != nil {
			last = view
		}
	}

	if ctx.Err() != nil || last == nil || len(last.Links) == 0 {
		return nil
	}
	return v.check(v.api.ClickLink(ctx, v.email, target.RandRange(0, len(last.Links))))
}

// check 吞掉状态码错误，保留无响应错误。
func (v *VirtualUser) check(err error) error {
	if err == nil {
		return nil
	}
	if target.IsStatusError(err) {
		v.logger.Debug("被测应用返回错误", zap.Error(err))
		return nil
	}
	return err
}

// Workload 在任务开始时为该任务准备虚拟用户。
type Workload interface {
	Prepare(cfg types.TestConfig) (VUFunc, error)
}

// WorkloadFunc 函数适配器。
type WorkloadFunc func(cfg types.TestConfig) (VUFunc, error)

// Prepare 调用 f。
func (f WorkloadFunc) Prepare(cfg types.TestConfig) (VUFunc, error) {
	return f(cfg)
}

// TargetWorkload 对被测应用执行虚拟用户脚本，同一任务的虚拟用户共享一个客户端。
type TargetWorkload struct {
	config *target.Config
	sink   target.Sink
	logger *zap.Logger
}

// NewTargetWorkload 创建工作负载，sink 接收全部计时指标。
func NewTargetWorkload(config *target.Config, sink target.Sink, l *zap.Logger) *TargetWorkload {
	if config == nil {
		config = target.DefaultConfig()
	}
	return &TargetWorkload{
		config: config,
		sink:   sink,
		logger: logger.OrDefault(l).Named("vu"),
	}
}

// Prepare 校验被测地址并创建本次任务的客户端。
func (w *TargetWorkload) Prepare(cfg types.TestConfig) (VUFunc, error) {
	if err := validateTargetURL(cfg.TargetURL); err != nil {
		return nil, err
	}
	tc := *w.config
	api := target.NewClient(cfg.TargetURL, &tc, w.sink)

	return func(ctx context.Context, id int) {
		NewVirtualUser(id, api, tc.AssetSize, w.logger).Run(ctx)
	}, nil
}

func validateTargetURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, raw)
	}
	return nil
}
