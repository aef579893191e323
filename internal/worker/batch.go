package worker

import (
	"context"
	"fmt"
	"os"

	"github.com/ppiankov/factbot/internal/model"
)

// Analyzer produces a source report for a piece of text
type Analyzer interface {
	Analyze(text string) model.SourceReport
}

// maxFileSize caps how much of a single input file is analyzed
const maxFileSize = 10 << 20

// FileJob analyzes the sources cited in one file
type FileJob struct {
	Path     string
	Analyzer Analyzer
}

// Execute reads the file and analyzes its text
func (j *FileJob) Execute(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return &FileResult{Path: j.Path, Error: err}
	}

	text, err := readText(j.Path)
	if err != nil {
		return &FileResult{Path: j.Path, Error: err}
	}

	report := j.Analyzer.Analyze(text)
	return &FileResult{Path: j.Path, Report: &report}
}

// FileResult is the outcome of a FileJob
type FileResult struct {
	Path   string
	Report *model.SourceReport
	Error  error
}

// GetError returns the error from the file result
func (r *FileResult) GetError() error {
	return r.Error
}

// BatchProcessor analyzes many files concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer Analyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// ProcessFiles analyzes every file and returns one result per path, in input order
func (b *BatchProcessor) ProcessFiles(ctx context.Context, paths []string) []*FileResult {
	if len(paths) == 0 {
		return []*FileResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, path := range paths {
		pool.Submit(&FileJob{Path: path, Analyzer: b.analyzer})
	}

	results := pool.Wait()

	fileResults := make([]*FileResult, len(paths))
	for i := range paths {
		if i < len(results) && results[i] != nil {
			fileResults[i] = results[i].(*FileResult)
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = fmt.Errorf("job not executed")
		}
		fileResults[i] = &FileResult{Path: paths[i], Error: err}
	}

	return fileResults
}

func readText(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxFileSize {
		return "", fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return string(data), nil
}
