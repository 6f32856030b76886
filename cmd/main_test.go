package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	qaconfig "github.com/fyerfyer/arch-QA-system/config"
	"github.com/fyerfyer/arch-QA-system/internal/embedding"
	"github.com/fyerfyer/arch-QA-system/internal/ingest"
	"github.com/fyerfyer/arch-QA-system/internal/llm"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		value string
		want  ingest.Source
	}{
		{"local:./src", ingest.Source{Type: ingest.SourceLocal, Path: "./src"}},
		{"github:octo/atlas@v2", ingest.Source{Type: ingest.SourceGitHub, Repo: "octo/atlas", Ref: "v2"}},
		{"github:https://github.com/octo/atlas", ingest.Source{Type: ingest.SourceGitHub, Repo: "https://github.com/octo/atlas"}},
		{"web:https://example.com/post", ingest.Source{Type: ingest.SourceWeb, URL: "https://example.com/post"}},
		{"pdf:https://example.com/a.pdf", ingest.Source{Type: ingest.SourcePDF, URL: "https://example.com/a.pdf"}},
		{"pdf:docs/a.pdf", ingest.Source{Type: ingest.SourcePDF, Path: "docs/a.pdf"}},
	}
	for _, tt := range tests {
		got, err := parseSource(tt.value)
		require.NoError(t, err, tt.value)
		assert.Equal(t, tt.want, got, tt.value)
	}

	_, err := parseSource("local")
	assert.ErrorIs(t, err, ingest.ErrInvalidSource)
	_, err = parseSource("ftp:host")
	assert.ErrorIs(t, err, ingest.ErrUnknownSourceType)

	var flags sourceFlags
	require.NoError(t, flags.Set("local:a"))
	require.NoError(t, flags.Set("web:https://example.com"))
	assert.Equal(t, "local:a,web:https://example.com", flags.String())
}

func TestRunOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() { serve() }\n"), 0644))

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	embedder, err := embedding.NewLocalClient()
	require.NoError(t, err)

	client := llm.NewMockClient(t)
	client.EXPECT().Generate(mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Expert Software Architect")
	}), mock.Anything).Return(&llm.Response{Text: "main calls serve."}, nil).Once()
	client.EXPECT().Generate(mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "Mermaid.js")
	}), mock.Anything).Return(&llm.Response{Text: "```mermaid\ngraph TD\n  main --> serve\n```"}, nil).Once()

	cfg := &qaconfig.Config{
		VectorDB: qaconfig.VectorDBConfig{Type: "memory", Distance: "cosine"},
		Embed:    qaconfig.EmbedConfig{BatchSize: 8, Workers: 2},
		Document: qaconfig.DocumentConfig{ChunkSize: 500, ChunkOverlap: 50},
		Search:   qaconfig.SearchConfig{TopK: 3},
	}
	service, err := setupService(cfg, t.TempDir(), embedder, client, nil, nil, false, logger)
	require.NoError(t, err)

	var out bytes.Buffer
	err = runOnce(service, []ingest.Source{{Type: ingest.SourceLocal, Path: dir}}, "What does main do?", &out)
	require.NoError(t, err)
	assert.Equal(t, "main calls serve.\n\n```mermaid\ngraph TD\n  main --> serve\n```\n\nSources:\n  - "+filepath.Join(dir, "main.go")+"\n", out.String())

	assert.Error(t, runOnce(service, nil, "q", &out))
	assert.Error(t, runOnce(service, []ingest.Source{{Type: ingest.SourceLocal, Path: dir}}, " ", &out))
}

func TestSetupScratchDir(t *testing.T) {
	dir, cleanup, err := setupScratchDir("")
	require.NoError(t, err)
	assert.DirExists(t, dir)
	cleanup()
	assert.NoDirExists(t, dir)

	owned := filepath.Join(t.TempDir(), "scratch")
	dir, cleanup, err = setupScratchDir(owned)
	require.NoError(t, err)
	cleanup()
	assert.DirExists(t, dir)
}
