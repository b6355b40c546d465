package validator

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// 自定义规则及其翻译。
var customRules = []struct {
	tag      string
	fn       validator.Func
	messages map[string]string
}{
	{
		tag: "notblank",
		fn: func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		},
		messages: map[string]string{
			LangEN: "{0} must not be blank",
			LangZH: "{0}不能为空白",
		},
	},
}

func (v *Validator) registerCustomRules() {
	for _, rule := range customRules {
		_ = v.validate.RegisterValidation(rule.tag, rule.fn)
		for lang, message := range rule.messages {
			trans, ok := v.trans[lang]
			if !ok {
				continue
			}
			tag, message := rule.tag, message
			_ = v.validate.RegisterTranslation(tag, trans,
				func(t ut.Translator) error {
					return t.Add(tag, message, true)
				},
				func(t ut.Translator, fe validator.FieldError) string {
					s, _ := t.T(tag, fe.Field())
					return s
				},
			)
		}
	}
}
