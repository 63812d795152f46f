package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/zeromicro/go-zero/core/conf"
)

// MustLoad 读取 yaml 配置文件并应用环境变量覆盖，失败直接退出
func MustLoad(path string, v any) {
	conf.MustLoad(path, v)
	if err := ApplyEnv(v); err != nil {
		panic(err)
	}
}

// LoadFromYamlBytes 从 yaml 内容加载配置并应用环境变量覆盖
func LoadFromYamlBytes(content []byte, v any) error {
	if err := conf.LoadFromYamlBytes(content, v); err != nil {
		return fmt.Errorf("load yaml config: %w", err)
	}
	return ApplyEnv(v)
}

// ApplyEnv 用 CROWDFUND_* 环境变量覆盖配置项
func ApplyEnv(v any) error {
	if err := env.Parse(v); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadDefaults 没有配置文件时只填默认值并应用环境变量覆盖
func LoadDefaults(v any) error {
	if err := conf.FillDefault(v); err != nil {
		return fmt.Errorf("fill default config: %w", err)
	}
	return ApplyEnv(v)
}
