package model

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/fyerfyer/arch-QA-system/internal/ingest"
)

var registerOnce sync.Once

// RegisterValidators 向gin的校验器注册自定义规则，重复调用只注册一次
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("unexpected validator engine")
			return
		}
		err = registerRules(v)
	})
	return err
}

// registerRules 注册来源类型规则和来源必填字段检查
func registerRules(v *validator.Validate) error {
	if err := v.RegisterValidation("source_type", validateSourceType); err != nil {
		return fmt.Errorf("failed to register source_type: %w", err)
	}
	v.RegisterStructValidation(validateSourceRequest, SourceRequest{})
	return nil
}

// validateSourceType 来源类型必须是已知类型
func validateSourceType(fl validator.FieldLevel) bool {
	switch ingest.SourceType(fl.Field().String()) {
	case ingest.SourceLocal, ingest.SourceGitHub, ingest.SourceWeb, ingest.SourcePDF:
		return true
	}
	return false
}

// validateSourceRequest 每种来源类型要求对应的定位字段
func validateSourceRequest(sl validator.StructLevel) {
	req := sl.Current().Interface().(SourceRequest)
	switch ingest.SourceType(req.Type) {
	case ingest.SourceLocal:
		if req.Path == "" {
			sl.ReportError(req.Path, "Path", "path", "required_for_type", req.Type)
		}
	case ingest.SourceGitHub:
		if req.Repo == "" {
			sl.ReportError(req.Repo, "Repo", "repo", "required_for_type", req.Type)
		}
	case ingest.SourceWeb:
		if req.URL == "" {
			sl.ReportError(req.URL, "URL", "url", "required_for_type", req.Type)
		}
	case ingest.SourcePDF:
		if req.Path == "" && req.URL == "" {
			sl.ReportError(req.Path, "Path", "path", "path_or_url", req.Type)
		}
	}
}

// ValidationMessages 把校验错误转换为可读描述
func ValidationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Namespace()))
		case "source_type":
			msgs = append(msgs, fmt.Sprintf("%s: unknown source type %q", fe.Namespace(), fe.Value()))
		case "required_for_type":
			msgs = append(msgs, fmt.Sprintf("%s is required for %s sources", fe.Namespace(), fe.Param()))
		case "path_or_url":
			msgs = append(msgs, fmt.Sprintf("%s: path or url is required for %s sources", fe.Namespace(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag()))
		}
	}
	return msgs
}
