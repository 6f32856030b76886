package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fyerfyer/arch-QA-system/internal/ingest"
	"github.com/fyerfyer/arch-QA-system/internal/services"
)

// sourceFlags 可重复的 -source 参数
type sourceFlags []ingest.Source

// String 实现flag.Value
func (s *sourceFlags) String() string {
	parts := make([]string, len(*s))
	for i, src := range *s {
		parts[i] = src.String()
	}
	return strings.Join(parts, ",")
}

// Set 实现flag.Value
func (s *sourceFlags) Set(value string) error {
	src, err := parseSource(value)
	if err != nil {
		return err
	}
	*s = append(*s, src)
	return nil
}

// parseSource 解析 type:location 形式的来源
// github 来源可以用 @ 指定分支，例如 github:owner/repo@main
func parseSource(value string) (ingest.Source, error) {
	kind, location, ok := strings.Cut(value, ":")
	if !ok || location == "" {
		return ingest.Source{}, fmt.Errorf("%w: %q, expected type:location", ingest.ErrInvalidSource, value)
	}

	switch t := ingest.SourceType(kind); t {
	case ingest.SourceLocal:
		return ingest.Source{Type: t, Path: location}, nil
	case ingest.SourceGitHub:
		repo, ref, _ := strings.Cut(location, "@")
		return ingest.Source{Type: t, Repo: repo, Ref: ref}, nil
	case ingest.SourceWeb:
		return ingest.Source{Type: t, URL: location}, nil
	case ingest.SourcePDF:
		if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
			return ingest.Source{Type: t, URL: location}, nil
		}
		return ingest.Source{Type: t, Path: location}, nil
	default:
		return ingest.Source{}, fmt.Errorf("%w: %q", ingest.ErrUnknownSourceType, kind)
	}
}

// runOnce 建立会话、回答一个问题并打印结果
func runOnce(service *services.ExplorerService, sources []ingest.Source, question string, out io.Writer) error {
	if len(sources) == 0 {
		return fmt.Errorf("at least one -source is required")
	}
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("-ask is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := service.BuildSession(ctx, sources)
	if err != nil {
		return err
	}
	defer service.CloseSession(ctx, session)

	for _, detail := range session.FailureDetails {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", detail)
	}

	answer, _, err := service.Ask(ctx, session, question)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, answer.Answer)
	if answer.HasDiagram {
		fmt.Fprintf(out, "\n```mermaid\n%s\n```\n", answer.Diagram)
	}
	if len(answer.Sources) > 0 {
		fmt.Fprintln(out, "\nSources:")
		for _, src := range answer.Sources {
			fmt.Fprintf(out, "  - %s\n", src.Source)
		}
	}
	return nil
}
