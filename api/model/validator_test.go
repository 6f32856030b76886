package model

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceValidation(t *testing.T) {
	v := validator.New()
	v.SetTagName("binding")
	require.NoError(t, registerRules(v))

	valid := CreateSessionRequest{Sources: []SourceRequest{
		{Type: "local", Path: "/src"},
		{Type: "github", Repo: "octo/atlas", Ref: "main"},
		{Type: "web", URL: "https://example.com/post"},
		{Type: "pdf", URL: "https://example.com/paper.pdf"},
	}}
	assert.NoError(t, v.Struct(valid))

	tests := []struct {
		name string
		req  CreateSessionRequest
		want string
	}{
		{"empty", CreateSessionRequest{}, "is required"},
		{"unknown type", CreateSessionRequest{Sources: []SourceRequest{{Type: "ftp", Path: "/x"}}}, `unknown source type "ftp"`},
		{"local without path", CreateSessionRequest{Sources: []SourceRequest{{Type: "local"}}}, "Path is required for local sources"},
		{"github without repo", CreateSessionRequest{Sources: []SourceRequest{{Type: "github"}}}, "Repo is required for github sources"},
		{"pdf without location", CreateSessionRequest{Sources: []SourceRequest{{Type: "pdf"}}}, "path or url is required"},
		{"bad url", CreateSessionRequest{Sources: []SourceRequest{{Type: "web", URL: "not a url"}}}, "failed url validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			require.Error(t, err)
			msgs := ValidationMessages(err)
			require.NotEmpty(t, msgs)
			assert.Contains(t, msgs[0], tt.want)
		})
	}
}

func TestToSources(t *testing.T) {
	req := CreateSessionRequest{Sources: []SourceRequest{{Type: "github", Repo: "octo/atlas", Ref: "v1", Extensions: []string{".go"}}}}
	sources := req.ToSources()
	require.Len(t, sources, 1)
	assert.Equal(t, "github:octo/atlas@v1", sources[0].String())
	assert.Equal(t, []string{".go"}, sources[0].Extensions)
}

func TestPagination(t *testing.T) {
	p := PaginationRequest{}
	assert.Equal(t, 1, p.GetPage())
	assert.Equal(t, 10, p.GetPageSize())
	assert.Equal(t, 0, p.Offset())

	p = PaginationRequest{Page: 3, PageSize: 500}
	assert.Equal(t, 100, p.GetPageSize())
	assert.Equal(t, 200, p.Offset())
}
