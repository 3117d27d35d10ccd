package service

import "errors"

var (
	// ErrProviderUnavailable 嵌入服务不可用或超时，整批摄入原子失败
	ErrProviderUnavailable = errors.New("嵌入服务不可用")
	// ErrMalformedItem 媒体条目缺少必填字段
	ErrMalformedItem = errors.New("媒体条目不合法")
	// ErrMediaNotFound 目录中不存在该媒体
	ErrMediaNotFound = errors.New("媒体不存在")
	// ErrIndexNotTrained 索引尚未训练，不能添加向量
	ErrIndexNotTrained = errors.New("索引尚未训练")
	// ErrDimensionMismatch 向量维度与索引不一致
	ErrDimensionMismatch = errors.New("向量维度不匹配")
	// ErrPersistence 持久化写入失败，内存侧更新被跳过
	ErrPersistence = errors.New("持久化写入失败")
)
