package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/eringen/nebula/genai"
)

type fakeText struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (f *fakeText) GenerateJSON(_ context.Context, prompt string, _ *genai.Schema) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

// fakeImages fails the slots listed in failOn (1-based call number).
type fakeImages struct {
	calls   int
	prompts []string
	failOn  map[int]bool
}

func (f *fakeImages) GenerateImage(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.failOn[f.calls] {
		return "", errors.New("model overloaded")
	}
	return fmt.Sprintf("data:image/png;base64,AI%d", f.calls), nil
}

type fakeSearch struct {
	results []string
	err     error
	calls   int
	counts  []int
}

func (f *fakeSearch) SearchImages(_ context.Context, _ string, count int) ([]string, error) {
	f.calls++
	f.counts = append(f.counts, count)
	return f.results, f.err
}
