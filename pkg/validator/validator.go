// Package validator provides request validation based on go-playground/validator
// with English and Chinese error messages. The Validator satisfies gin's
// binding.StructValidator so `binding:"..."` tags are checked by it.
package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
)

// Language constants for i18n support.
const (
	LangEN = "en"
	LangZH = "zh"
)

// TagName is the struct tag read by the validator, shared with gin binding.
const TagName = "binding"

// Validator wraps go-playground/validator with translators.
type Validator struct {
	validate *validator.Validate
	trans    map[string]ut.Translator
}

var (
	globalValidator *Validator
	once            sync.Once
)

// Global returns the process-wide validator, created on first use.
func Global() *Validator {
	once.Do(func() {
		globalValidator = New()
	})
	return globalValidator
}

// New creates a Validator with the built-in and custom rules registered.
func New() *Validator {
	v := &Validator{
		validate: validator.New(),
		trans:    make(map[string]ut.Translator, 2),
	}
	v.validate.SetTagName(TagName)

	// 错误中的字段名使用 json 标签。
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale, zh.New())

	enTrans, _ := uni.GetTranslator(LangEN)
	_ = en_translations.RegisterDefaultTranslations(v.validate, enTrans)
	v.trans[LangEN] = enTrans

	zhTrans, _ := uni.GetTranslator(LangZH)
	_ = zh_translations.RegisterDefaultTranslations(v.validate, zhTrans)
	v.trans[LangZH] = zhTrans

	v.registerCustomRules()
	return v
}

// ValidateStruct validates structs and pointers to structs. Other kinds pass.
func (v *Validator) ValidateStruct(obj any) error {
	if obj == nil {
		return nil
	}
	value := reflect.ValueOf(obj)
	for value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil
	}
	return v.validate.Struct(obj)
}

// Engine returns the underlying validator.Validate instance.
func (v *Validator) Engine() any {
	return v.validate
}

// Var validates a single variable against a tag expression.
func (v *Validator) Var(field any, tag string) error {
	return v.validate.Var(field, tag)
}

// Translate converts a validation failure into translated field errors.
// It returns nil when err does not come from the validator.
func (v *Validator) Translate(err error, lang string) *ValidationErrors {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	trans, ok := v.trans[NormalizeLang(lang)]
	if !ok {
		trans = v.trans[LangEN]
	}

	out := &ValidationErrors{Errors: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Errors = append(out.Errors, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: fe.Translate(trans),
		})
	}
	return out
}

// NormalizeLang reduces an Accept-Language value such as "zh-CN,zh;q=0.9"
// to one of the supported languages.
func NormalizeLang(header string) string {
	first := strings.TrimSpace(strings.SplitN(header, ",", 2)[0])
	first = strings.ToLower(strings.SplitN(first, ";", 2)[0])
	if strings.HasPrefix(first, LangZH) {
		return LangZH
	}
	return LangEN
}
