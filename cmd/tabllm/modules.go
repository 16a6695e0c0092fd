package main

// Compiled modules. Each registers itself in init().
import (
	_ "github.com/flemzord/tabllm/internal/gateway"
	_ "github.com/flemzord/tabllm/modules/health/probe"
	_ "github.com/flemzord/tabllm/modules/provider/anthropic"
	_ "github.com/flemzord/tabllm/modules/provider/azure"
	_ "github.com/flemzord/tabllm/modules/provider/ollama"
	_ "github.com/flemzord/tabllm/modules/provider/openai"
	_ "github.com/flemzord/tabllm/modules/store/sqlite"
	_ "github.com/flemzord/tabllm/modules/store/static"
	_ "github.com/flemzord/tabllm/modules/telemetry/otlp"
)
