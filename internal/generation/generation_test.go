package generation

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// FakeGenerator is a Generator whose behaviour is set per test.
type FakeGenerator struct {
	GenerateFn func(ctx context.Context, req Request) (*Artifact, error)
	calls      int
}

func (f *FakeGenerator) Generate(ctx context.Context, req Request) (*Artifact, error) {
	f.calls++
	return f.GenerateFn(ctx, req)
}

func TestValidatePath(t *testing.T) {
	t.Parallel()

	valid := []string{"main.py", "src/app/__init__.py", "docs/./guide.md", "a/../b.txt"}
	for _, p := range valid {
		assert.NoError(t, ValidatePath(p), p)
	}

	invalid := []string{"", "  ", "/etc/passwd", `\windows`, "C:/boot.ini", "..", "../escape.txt", "a/../../b"}
	for _, p := range invalid {
		assert.ErrorIs(t, ValidatePath(p), ErrUnsafePath, p)
	}
}

func TestParseFileMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		text    string
		want    map[string]string
		wantErr error
	}{
		{
			name: "bare object",
			text: `{"main.py": "print('hi')", "README.md": "# calc"}`,
			want: map[string]string{"main.py": "print('hi')", "README.md": "# calc"},
		},
		{
			name: "wrapped in prose and fences",
			text: "Here you go:\n```json\n{\"main.py\": \"print(1)\"}\n```\nEnjoy!",
			want: map[string]string{"main.py": "print(1)"},
		},
		{name: "no object", text: "sorry, I cannot help", wantErr: ErrInvalidResponse},
		{name: "broken json", text: `{"main.py": }`, wantErr: ErrInvalidResponse},
		{name: "empty mapping", text: `{}`, wantErr: ErrInvalidResponse},
		{name: "non-string content", text: `{"main.py": {"nested": true}}`, wantErr: ErrInvalidResponse},
		{name: "unsafe path", text: `{"../../etc/cron.d/x": "boom"}`, wantErr: ErrUnsafePath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			artifact, err := ParseFileMapping(tt.text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, artifact.Files)
		})
	}
}

func TestTemplateGenerator(t *testing.T) {
	t.Parallel()

	gen, err := NewTemplateGenerator()
	require.NoError(t, err)
	assert.Contains(t, gen.names(), DefaultTemplate)

	for _, tmpl := range []string{"python-cli", "does-not-exist"} {
		t.Run(tmpl, func(t *testing.T) {
			t.Parallel()
			artifact, err := gen.Generate(context.Background(), Request{
				Name:     "calc",
				Idea:     "a calculator",
				Template: tmpl,
			})
			require.NoError(t, err)
			require.NoError(t, artifact.Validate())

			assert.Contains(t, artifact.Files, "README.md")
			assert.Contains(t, artifact.Files, "main.py")
			assert.Contains(t, artifact.Files["README.md"], "# calc")
			assert.Contains(t, artifact.Files["README.md"], "a calculator")
			assert.Contains(t, artifact.Files["main.py"], `prog="calc"`)
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = gen.Generate(ctx, Request{Name: "calc", Idea: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFallbackGenerator(t *testing.T) {
	t.Parallel()

	good := &Artifact{Files: map[string]string{"llm.txt": "from llm"}}
	templated := &Artifact{Files: map[string]string{"tmpl.txt": "from template"}}
	req := Request{Name: "calc", Idea: "a calculator"}

	tests := []struct {
		name          string
		primary       *FakeGenerator
		want          *Artifact
		wantErr       error
		wantFallbacks int
	}{
		{
			name: "primary succeeds",
			primary: &FakeGenerator{GenerateFn: func(context.Context, Request) (*Artifact, error) {
				return good, nil
			}},
			want: good,
		},
		{
			name: "primary errors",
			primary: &FakeGenerator{GenerateFn: func(context.Context, Request) (*Artifact, error) {
				return nil, errors.New("quota exceeded")
			}},
			want:          templated,
			wantFallbacks: 1,
		},
		{
			name: "primary returns empty artifact",
			primary: &FakeGenerator{GenerateFn: func(context.Context, Request) (*Artifact, error) {
				return &Artifact{}, nil
			}},
			want:          templated,
			wantFallbacks: 1,
		},
		{
			name: "deadline is not masked",
			primary: &FakeGenerator{GenerateFn: func(context.Context, Request) (*Artifact, error) {
				return nil, context.DeadlineExceeded
			}},
			wantErr: context.DeadlineExceeded,
		},
		{
			name:          "no primary",
			want:          templated,
			wantFallbacks: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fallback := &FakeGenerator{GenerateFn: func(context.Context, Request) (*Artifact, error) {
				return templated, nil
			}}

			var primary Generator
			if tt.primary != nil {
				primary = tt.primary
			}
			got, err := NewFallbackGenerator(primary, fallback).Generate(context.Background(), req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantFallbacks, fallback.calls)
		})
	}
}

func TestPackage(t *testing.T) {
	t.Parallel()

	artifact := &Artifact{Files: map[string]string{
		"main.py":         "print('hi')\n",
		"README.md":       "# calc\n",
		"pkg/__init__.py": "",
	}}
	modTime := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	data, err := Package(artifact, modTime)
	require.NoError(t, err)

	again, err := Package(artifact, modTime)
	require.NoError(t, err)
	assert.Equal(t, data, again)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	got := make(map[string]string)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		got[f.Name] = string(body)
	}
	assert.Equal(t, []string{"README.md", "main.py", "pkg/__init__.py"}, names)
	assert.Equal(t, artifact.Files, got)

	_, err = Package(&Artifact{}, modTime)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}
