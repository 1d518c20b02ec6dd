// Package rule 封装 go-playground/validator，使用 rule 标签，并注册配置专用的校验规则.
package rule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// TagName 结构体校验使用的标签名.
const TagName = "rule"

var (
	inst     *validator.Validate
	initOnce sync.Once
)

// builtin 随引擎一起注册的规则.
var builtin = map[string]validator.Func{
	"cron":         isCron,
	"ratelimitkey": isRateLimitKey,
}

func setup() {
	// 独立于 gin 的 binding 引擎，两套标签互不影响
	inst = validator.New(validator.WithRequiredStructEnabled())
	inst.SetTagName(TagName)

	for tag, fn := range builtin {
		if err := inst.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("rule: register %q: %v", tag, err))
		}
	}
}

// Engine 返回全局 validator.
func Engine() *validator.Validate {
	initOnce.Do(setup)

	return inst
}

// RegisterValidation 注册自定义规则.
func RegisterValidation(tag string, fn validator.Func, opts ...bool) error {
	return Engine().RegisterValidation(tag, fn, opts...)
}

// RegisterAlias 注册规则别名.
func RegisterAlias(alias, rules string) {
	Engine().RegisterAlias(alias, rules)
}

// ValidateStruct 按 rule 标签校验结构体.
func ValidateStruct(s any) error {
	return Engine().Struct(s)
}

// ValidateVar 按规则校验单个值，例如 ValidateVar("0 1 * * *", "cron").
func ValidateVar(field any, tag string) error {
	return Engine().Var(field, tag)
}

// ValidationErrors 字段路径到失败规则的映射.
type ValidationErrors map[string]string

// String 按字段排序输出，便于日志与命令行展示.
func (e ValidationErrors) String() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}

	return strings.Join(parts, "; ")
}

// Errors 把校验错误展开为 ValidationErrors；非校验错误返回 nil.
func Errors(err error) ValidationErrors {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make(ValidationErrors, len(verrs))
	for _, fe := range verrs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}

		out[fe.Namespace()] = msg
	}

	return out
}

// isCron 标准五段 cron 表达式，与调度器的解析一致.
func isCron(fl validator.FieldLevel) bool {
	expr := strings.TrimSpace(fl.Field().String())
	if expr == "" {
		return false
	}

	_, err := cron.ParseStandard(expr)

	return err == nil
}

// isRateLimitKey global | ip | header:<Name>.
func isRateLimitKey(fl validator.FieldLevel) bool {
	key := strings.ToLower(strings.TrimSpace(fl.Field().String()))

	switch key {
	case "", "global", "ip":
		return true
	}

	name, ok := strings.CutPrefix(key, "header:")

	return ok && name != "" && !strings.ContainsAny(name, " \t:")
}
