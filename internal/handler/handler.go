package handler

import (
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/user/mediarec/internal/config"
	"github.com/user/mediarec/internal/service"
)

// Handler API 处理器
type Handler struct {
	Engine *service.RecommendService
	Config *config.Config
}

// NewHandler 创建处理器并注册自定义校验规则
func NewHandler(engine *service.RecommendService, cfg *config.Config) *Handler {
	registerValidators()
	return &Handler{
		Engine: engine,
		Config: cfg,
	}
}

// registerValidators 注册自定义校验：notblank 拒绝纯空白字符串
func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
	}
}
