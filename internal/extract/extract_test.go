package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/R204570/LexAudit-Flow/internal/config"
	"github.com/R204570/LexAudit-Flow/internal/pdfdoc/pdftest"
)

type extractorFunc func(ctx context.Context, path string) (string, error)

func (f extractorFunc) ExtractText(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

func TestNewExtractor(t *testing.T) {
	tests := []struct {
		provider string
		want     Extractor
		wantErr  string
	}{
		{provider: "", want: &Native{}},
		{provider: "native", want: &Native{}},
		{provider: "pdftotext", want: &PdfToText{}},
		{provider: "tika", wantErr: `unknown provider "tika"`},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			ex, err := NewExtractor(config.ExtractConfig{Provider: tt.provider})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, ex)
		})
	}
}

func TestPdfToText_BinPath(t *testing.T) {
	assert.Equal(t, "pdftotext", NewPdfToText("").binPath)
	assert.Equal(t, "/custom/pdftotext", NewPdfToText("/custom/pdftotext").binPath)
}

func TestPdfToText_ExtractText_Success(t *testing.T) {
	fakeBin := filepath.Join(t.TempDir(), "pdftotext")
	require.NoError(t, os.WriteFile(fakeBin, []byte("#!/bin/sh\necho 'Extracted text content'\n"), 0o755))

	text, err := NewPdfToText(fakeBin).ExtractText(context.Background(), "/tmp/dummy.pdf")
	require.NoError(t, err)
	assert.Contains(t, text, "Extracted text content")
}

func TestPdfToText_ExtractText_BinaryNotFound(t *testing.T) {
	_, err := NewPdfToText("/nonexistent/pdftotext").ExtractText(context.Background(), "/tmp/test.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract: pdftotext")
}

func TestPdfToText_ExtractText_PageBreaks(t *testing.T) {
	fakeBin := filepath.Join(t.TempDir(), "pdftotext")
	require.NoError(t, os.WriteFile(fakeBin, []byte("#!/bin/sh\nprintf 'page one\\fpage two'\n"), 0o755))

	text, err := NewPdfToText(fakeBin).ExtractText(context.Background(), "/tmp/dummy.pdf")
	require.NoError(t, err)
	assert.Equal(t, "page one\npage two", text)
}

func TestPdfToText_ExtractText_NotOnPath(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := NewPdfToText("pdftotext").ExtractText(context.Background(), "/tmp/test.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext not installed")
}

func TestNative_ExtractText(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "doc.pdf",
		pdftest.Lines("First page heading"),
		pdftest.Lines("Tablets now attract 5%"),
	)

	text, err := NewNative().ExtractText(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "First page heading")
	assert.Contains(t, text, "Tablets now attract 5%")
	assert.Less(t, strings.Index(text, "First"), strings.Index(text, "Tablets"), "pages in order")
}

func TestNative_ExtractText_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewNative().ExtractText(ctx, "whatever.pdf")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestText_LogsAndSwallowsErrors(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	defer zap.ReplaceGlobals(zap.New(core))()

	failing := extractorFunc(func(context.Context, string) (string, error) {
		return "", errors.New("corrupt xref")
	})
	assert.Equal(t, "", Text(context.Background(), failing, "bad.pdf"))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "bad.pdf", logs.All()[0].ContextMap()["path"])

	ok := extractorFunc(func(context.Context, string) (string, error) { return "hello", nil })
	assert.Equal(t, "hello", Text(context.Background(), ok, "good.pdf"))
}
