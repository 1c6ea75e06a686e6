package target

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

var (
	emailPath = jp.MustParseString("$.email")
	linksPath = jp.MustParseString("$.links[*]")
)

// PublicView 公开主页中虚拟用户关心的部分。
type PublicView struct {
	Email string
	Links []Link
}

// ParsePublicView 解析公开主页 JSON。缺少 links 字段时返回空列表。
func ParsePublicView(body []byte) (*PublicView, error) {
	data, err := oj.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("解析公开主页失败: %w", err)
	}

	view := &PublicView{}
	if email, ok := emailPath.First(data).(string); ok {
		view.Email = email
	}
	for _, item := range linksPath.Get(data) {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		link := Link{}
		link.Title, _ = obj["title"].(string)
		link.URL, _ = obj["url"].(string)
		view.Links = append(view.Links, link)
	}
	return view, nil
}
