package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode/utf8"

	"pantry-recipes/internal/api/middleware"
	"pantry-recipes/internal/core/recipe"
	"pantry-recipes/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators 註冊自訂驗證規則，重複呼叫無副作用
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}

		// 錯誤訊息使用 JSON 欄位名
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})

		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})

		// 長度以去除前後空白後的字元數計算
		_ = v.RegisterValidation("trimmed_max", func(fl validator.FieldLevel) bool {
			var max int
			if _, err := fmt.Sscan(fl.Param(), &max); err != nil {
				return false
			}
			return utf8.RuneCountInString(strings.TrimSpace(fl.Field().String())) <= max
		})

		_ = v.RegisterValidation("ingredients_min", func(fl validator.FieldLevel) bool {
			var min int
			if _, err := fmt.Sscan(fl.Param(), &min); err != nil {
				return false
			}
			return len(recipe.SplitIngredients(fl.Field().String())) >= min
		})
	})
}

// BindJSON 解析並驗證請求本文；失敗時已寫入錯誤響應
func BindJSON(c *gin.Context, v interface{}) bool {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return true
	}

	if middleware.IsBodyTooLarge(err) {
		middleware.AbortBodyTooLarge(c, err)
		return false
	}

	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		issues := make([]map[string]interface{}, 0, len(validationErrs))
		for _, fe := range validationErrs {
			issues = append(issues, map[string]interface{}{
				"path":    fe.Field(),
				"code":    fe.Tag(),
				"message": validationMessage(fe),
			})
		}
		common.AbortWithError(c, common.ErrInvalidRequest.
			WithMessage(validationMessage(validationErrs[0])).
			WithDetails(map[string]interface{}{"issues": issues}))
		return false
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			common.AbortWithError(c, common.ErrInvalidRequest)
			return false
		}
		common.AbortWithError(c, common.ErrInvalidRequest.
			WithMessage(fmt.Sprintf("%s must be a %s", fieldLabel(field), typeName(typeErr.Type))))
		return false
	}

	common.AbortWithError(c, common.ErrInvalidJSON)
	return false
}

func validationMessage(fe validator.FieldError) string {
	label := fieldLabel(fe.Field())
	switch fe.Tag() {
	case "required", "notblank":
		return label + " is required"
	case "email":
		return label + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", label, fe.Param())
	case "max", "trimmed_max":
		return fmt.Sprintf("%s must be at most %s characters long", label, fe.Param())
	case "ingredients_min":
		return fmt.Sprintf("Provide at least %s ingredients", fe.Param())
	default:
		return label + " is invalid"
	}
}

// fieldLabel include_basics → Include basics
func fieldLabel(field string) string {
	if field == "" {
		return "Value"
	}
	label := strings.ReplaceAll(field, "_", " ")
	return strings.ToUpper(label[:1]) + label[1:]
}

func typeName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int64, reflect.Int32, reflect.Float64, reflect.Float32:
		return "number"
	case reflect.Ptr:
		return typeName(t.Elem())
	default:
		return "valid value"
	}
}
