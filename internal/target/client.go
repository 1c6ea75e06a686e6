package target

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"yqhp/loadtest/pkg/types"
)

// 被测应用的路由。
const (
	pathUserExists   = "/api/user/%s/exists"
	pathUserRegister = "/api/user/register"
	pathUser         = "/api/user/%s"
	pathUserPicture  = "/api/user/%s/pic"
	pathUserLinks    = "/api/user/%s/links"
	pathPublicView   = "/api/public/%s"
	pathLinkClick    = "/api/public/%s/links/%d/click"
)

// Sink 接收计时结果，由 metrics.Queue 实现。
type Sink interface {
	Push(m types.Metric)
}

// Config 被测应用客户端配置。
type Config struct {
	RequestTimeout  time.Duration
	MaxConnsPerHost int
	AssetSize       int // 上传图片的字节数
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		RequestTimeout:  30 * time.Second,
		MaxConnsPerHost: 1024,
		AssetSize:       130 * 1024,
	}
}

// Profile 用户资料。
type Profile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Link 用户的一个链接。
type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Client 被测应用客户端，可被多个虚拟用户并发使用。
type Client struct {
	baseURL string
	config  *Config
	http    *fasthttp.Client
	sink    Sink
	now     func() time.Time
}

// NewClient 创建客户端，sink 接收所有计时调用产生的指标。
func NewClient(baseURL string, config *Config, sink Sink) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultConfig().RequestTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		config:  config,
		http: &fasthttp.Client{
			MaxConnsPerHost:        config.MaxConnsPerHost,
			MaxIdleConnDuration:    90 * time.Second,
			DisablePathNormalizing: true,
		},
		sink: sink,
		now:  time.Now,
	}
}

// AssetSize 返回上传图片的字节数。
func (c *Client) AssetSize() int {
	return c.config.AssetSize
}

// UserExists 探测用户是否存在。404 视为正常的“不存在”，本调用不计时。
func (c *Client) UserExists(ctx context.Context, email string) (bool, error) {
	path := fmt.Sprintf(pathUserExists, url.PathEscape(email))
	req, resp := acquire(fasthttp.MethodGet, c.baseURL+path)
	defer release(req, resp)

	if err := c.do(ctx, req, resp); err != nil {
		return false, err
	}
	switch code := resp.StatusCode(); {
	case code == fasthttp.StatusNotFound:
		return false, nil
	case code >= fasthttp.StatusBadRequest:
		return false, &StatusError{Path: path, Code: code}
	default:
		return true, nil
	}
}

// Register 注册用户，请求体为纯文本邮箱。
func (c *Client) Register(ctx context.Context, email string) error {
	req, resp := acquire(fasthttp.MethodPost, c.baseURL+pathUserRegister)
	defer release(req, resp)

	req.Header.SetContentType("text/plain")
	req.SetBodyString(email)
	return c.timed(ctx, pathUserRegister, req, resp)
}

// UpdateProfile 更新用户资料。
func (c *Client) UpdateProfile(ctx context.Context, email string, p Profile) error {
	path := fmt.Sprintf(pathUser, url.PathEscape(email))
	return c.sendJSON(ctx, fasthttp.MethodPut, path, p)
}

// UploadPicture 以 multipart 表单字段 file 上传头像。
func (c *Client) UploadPicture(ctx context.Context, email string, image []byte) error {
	path := fmt.Sprintf(pathUserPicture, url.PathEscape(email))
	req, resp := acquire(fasthttp.MethodPost, c.baseURL+path)
	defer release(req, resp)

	body, contentType, err := multipartImage(image)
	if err != nil {
		return fmt.Errorf("构建上传表单失败: %w", err)
	}
	req.Header.SetContentType(contentType)
	req.SetBody(body)
	return c.timed(ctx, path, req, resp)
}

// ClearLinks 删除用户的全部链接。
func (c *Client) ClearLinks(ctx context.Context, email string) error {
	path := fmt.Sprintf(pathUserLinks, url.PathEscape(email))
	req, resp := acquire(fasthttp.MethodDelete, c.baseURL+path)
	defer release(req, resp)
	return c.timed(ctx, path, req, resp)
}

// AddLink 为用户添加一个链接。
func (c *Client) AddLink(ctx context.Context, email string, link Link) error {
	path := fmt.Sprintf(pathUserLinks, url.PathEscape(email))
	return c.sendJSON(ctx, fasthttp.MethodPost, path, link)
}

// FetchPublicView 获取用户公开主页并解析其中的链接。
func (c *Client) FetchPublicView(ctx context.Context, email string) (*PublicView, error) {
	path := fmt.Sprintf(pathPublicView, url.PathEscape(email))
	req, resp := acquire(fasthttp.MethodGet, c.baseURL+path)
	defer release(req, resp)

	if err := c.timed(ctx, path, req, resp); err != nil {
		return nil, err
	}
	return ParsePublicView(resp.Body())
}

// ClickLink 点击公开主页上第 index 个链接。
func (c *Client) ClickLink(ctx context.Context, email string, index int) error {
	path := fmt.Sprintf(pathLinkClick, url.PathEscape(email), index)
	req, resp := acquire(fasthttp.MethodPost, c.baseURL+path)
	defer release(req, resp)
	return c.timed(ctx, path, req, resp)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, v any) error {
	body, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %w", err)
	}
	req, resp := acquire(method, c.baseURL+path)
	defer release(req, resp)

	req.Header.SetContentType("application/json")
	req.SetBody(body)
	return c.timed(ctx, path, req, resp)
}

// timed 执行请求并记录一条指标。未得到响应时不记录，状态码 >= 400 记为失败。
func (c *Client) timed(ctx context.Context, path string, req *fasthttp.Request, resp *fasthttp.Response) error {
	start := c.now()
	if err := c.do(ctx, req, resp); err != nil {
		return err
	}
	elapsed := c.now().Sub(start).Milliseconds()
	if elapsed < 0 {
		elapsed = 0
	}

	code := resp.StatusCode()
	errorCode := types.NoError
	if code >= fasthttp.StatusBadRequest {
		errorCode = code
	}
	if c.sink != nil {
		c.sink.Push(types.Metric{RequestPath: path, ResponseTime: elapsed, ErrorCode: errorCode})
	}

	if errorCode != types.NoError {
		return &StatusError{Path: path, Code: code}
	}
	return nil
}

// do 执行请求，截止时间取请求超时与 ctx 截止时间中较早者。
// ctx 可取消时请求在独立 goroutine 中发出，ctx 取消后立即返回；
// 该 goroutine 持有请求副本，收到响应或到达截止时间后自行释放。
func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrNoResponse, err)
	}
	deadline := time.Now().Add(c.config.RequestTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if ctx.Done() == nil {
		if err := c.http.DoDeadline(req, resp, deadline); err != nil {
			return fmt.Errorf("%w: %w", ErrNoResponse, err)
		}
		return nil
	}

	inflightReq, inflightResp := fasthttp.AcquireRequest(), fasthttp.AcquireResponse()
	req.CopyTo(inflightReq)

	done := make(chan error, 1)
	go func() {
		done <- c.http.DoDeadline(inflightReq, inflightResp, deadline)
	}()

	select {
	case err := <-done:
		if err == nil {
			inflightResp.CopyTo(resp)
		}
		release(inflightReq, inflightResp)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNoResponse, err)
		}
		return nil
	case <-ctx.Done():
		go func() {
			<-done
			release(inflightReq, inflightResp)
		}()
		return fmt.Errorf("%w: %w", ErrNoResponse, ctx.Err())
	}
}

func acquire(method, uri string) (*fasthttp.Request, *fasthttp.Response) {
	req := fasthttp.AcquireRequest()
	req.Header.SetMethod(method)
	req.SetRequestURI(uri)
	return req, fasthttp.AcquireResponse()
}

func release(req *fasthttp.Request, resp *fasthttp.Response) {
	fasthttp.ReleaseRequest(req)
	fasthttp.ReleaseResponse(resp)
}

func multipartImage(image []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="img.jpg"`)
	header.Set("Content-Type", "image/jpeg")

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
