// Package validate настраивает валидатор входных данных с тегами портала.
package validate

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator"
)

var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// New возвращает валидатор с зарегистрированными тегами:
//
//	noplus - в локальной части адреса нет "+"
//	slug   - строчные латинские буквы и цифры, разделённые одиночными дефисами
func New() *validator.Validate {
	v := validator.New()
	// ошибки регистрации возможны только при пустом имени тега
	_ = v.RegisterValidation("noplus", noPlus)
	_ = v.RegisterValidation("slug", slug)
	return v
}

func noPlus(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return !strings.Contains(addr, "+")
	}
	return !strings.Contains(addr[:at], "+")
}

func slug(fl validator.FieldLevel) bool {
	return slugRe.MatchString(fl.Field().String())
}
