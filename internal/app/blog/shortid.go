package blog

import (
	"sync"

	"github.com/sqids/sqids-go"
)

// short id 长度下限 8，和 URL 里看到的 uuid 前缀长度一致。
const shortIDMinLength = 8

var (
	sq   *sqids.Sqids
	once sync.Once
)

func getSqids() *sqids.Sqids {
	once.Do(func() {
		var err error
		sq, err = sqids.New(sqids.Options{
			Alphabet:  "cKaVPRug0job8tZSlEmMivsHLXGCh1DxWOe7ANIzJfTqr52dwUBn6yQ43Fp9Yk",
			MinLength: shortIDMinLength,
		})
		if err != nil {
			panic("sqids init failed: " + err.Error())
		}
	})
	return sq
}

// NewShortID 把文章的自增序号编码成 short id。
// 字母表只有字母和数字，结果里不会出现 "-"。
func NewShortID(seq uint64) (string, error) {
	return getSqids().Encode([]uint64{seq})
}

// ShortIDSeq 是 NewShortID 的逆操作，ok=false 表示不是本服务生成的 short id。
func ShortIDSeq(shortID string) (uint64, bool) {
	if shortID == "" {
		return 0, false
	}
	nums := getSqids().Decode(shortID)
	if len(nums) != 1 {
		return 0, false
	}
	// sqids 对同一个数只有一种规范编码，反编码回来不一致说明输入被改过。
	if again, err := NewShortID(nums[0]); err != nil || again != shortID {
		return 0, false
	}
	return nums[0], true
}
