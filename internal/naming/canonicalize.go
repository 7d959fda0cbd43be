// Package naming 实现 PEP 503 规定的包名规范化规则，供路径推导与索引查找复用。
package naming

import (
	"regexp"
	"strings"
)

var separatorRuns = regexp.MustCompile(`[-_.]+`)

// Canonicalize 将展示用包名归一为稳定标识：小写，并把连续的 `-`、`_`、`.`
// 压缩为单个 `-`。同一包的不同写法（Foo-Bar、foo_bar、FOO.BAR）归一后一致。
func Canonicalize(name string) string {
	return strings.ToLower(separatorRuns.ReplaceAllString(name, "-"))
}
