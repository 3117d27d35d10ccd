package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// OllamaRequest Ollama embedding API 请求结构
type OllamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// OllamaResponse Ollama embedding API 响应结构
type OllamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

// OllamaProvider 本地 Ollama 向量嵌入服务
type OllamaProvider struct {
	host       string
	model      string
	dimensions int
	client     *http.Client
}

// NewOllamaProvider 创建 Ollama 嵌入服务
func NewOllamaProvider(host, model string, dimensions int) *OllamaProvider {
	return &OllamaProvider{
		host:       host,
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{},
	}
}

// Embed 调用本地 Ollama API 生成向量，超时由调用方通过 ctx 控制
func (p *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := OllamaRequest{
		Model:  p.model,
		Prompt: text,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/embeddings", p.host), bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post request to ollama failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned error status: %d", resp.StatusCode)
	}

	var result OllamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}

	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("ollama returned empty embedding")
	}

	return result.Embedding, nil
}

// Dimensions 返回向量维度
func (p *OllamaProvider) Dimensions() int {
	return p.dimensions
}
