package blog

// base62 用来给上传对象生成短而单调的前缀（纳秒时间戳 -> base62），
// 同一篇文章多次替换图片时对象名不会冲突。
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// EncodeBase62 将非负整数编码为 Base62 字符串，0 编码为 "0"。
func EncodeBase62(n uint64) string {
	if n == 0 {
		return "0"
	}

	var buf [11]byte // 62^11 > 2^64
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = alphabet[n%62]
		n /= 62
	}
	return string(buf[i:])
}
