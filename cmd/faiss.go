//go:build faiss

package main

// 需要本机安装libfaiss_c，使用 go build -tags faiss 启用 vectordb.type=faiss
import _ "github.com/fyerfyer/arch-QA-system/internal/vectordb/faissdb"
