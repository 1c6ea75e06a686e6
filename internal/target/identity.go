package target

import (
	"fmt"
	"strings"

	"github.com/duke-git/lancet/v2/random"
	"github.com/google/uuid"
)

var (
	firstNames = []string{"Ada", "Alan", "Grace", "Linus", "Ken", "Barbara", "Dennis", "Margaret", "Edsger", "Frances"}
	lastNames  = []string{"Lovelace", "Turing", "Hopper", "Torvalds", "Thompson", "Liskov", "Ritchie", "Hamilton", "Dijkstra", "Allen"}
	linkSlugs  = []string{"off-and-on-again", "definitely-plugged-in", "the-elders-of-the-internet", "this-is-the-internet", "0118-999-881-999"}
)

// NewEmail 生成一个唯一的虚拟用户邮箱。
func NewEmail() string {
	first := strings.ToLower(pick(firstNames))
	return fmt.Sprintf("%s.%s@loadtest.example", first, strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

// NewProfile 生成随机用户资料。
func NewProfile() Profile {
	return Profile{FirstName: pick(firstNames), LastName: pick(lastNames)}
}

// NewLink 生成随机链接。
func NewLink() Link {
	return Link{
		Title: pick(firstNames) + " " + pick(lastNames),
		URL:   "https://" + strings.ToLower(random.RandString(10)) + ".example/" + pick(linkSlugs),
	}
}

// NewImage 生成 size 字节的随机图片内容。
func NewImage(size int) []byte {
	if size <= 0 {
		return nil
	}
	return random.RandBytes(size)
}

// RandRange 返回 [min, max) 内的随机整数。
func RandRange(min, max int) int {
	if max <= min {
		return min
	}
	return random.RandInt(min, max)
}

func pick(items []string) string {
	return items[random.RandInt(0, len(items))]
}
