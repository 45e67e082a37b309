package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	calls []string
	args  [][]string
	err   error
}

func (f *fakeExec) record(name string, args []string) error {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args)
	return f.err
}

func (f *fakeExec) Status(ctx context.Context) error    { return f.record("status", nil) }
func (f *fakeExec) Sync(ctx context.Context) error      { return f.record("sync", nil) }
func (f *fakeExec) Reset(ctx context.Context) error     { return f.record("reset", nil) }
func (f *fakeExec) Bootstrap(ctx context.Context) error { return f.record("bootstrap", nil) }
func (f *fakeExec) Sales(ctx context.Context) error     { return f.record("sales", nil) }
func (f *fakeExec) Use(ctx context.Context, args []string) error {
	return f.record("use", args)
}
func (f *fakeExec) Lots(ctx context.Context, args []string) error {
	return f.record("lots", args)
}
func (f *fakeExec) AddLot(ctx context.Context, args []string) error {
	return f.record("addlot", args)
}
func (f *fakeExec) Photos(ctx context.Context, args []string) error {
	return f.record("photos", args)
}
func (f *fakeExec) AddPhoto(ctx context.Context, args []string) error {
	return f.record("addphoto", args)
}
func (f *fakeExec) Primary(ctx context.Context, args []string) error {
	return f.record("primary", args)
}
func (f *fakeExec) Pending(ctx context.Context) error   { return f.record("pending", nil) }
func (f *fakeExec) Tasks(ctx context.Context) error     { return f.record("tasks", nil) }
func (f *fakeExec) Conflicts(ctx context.Context) error { return f.record("conflicts", nil) }
func (f *fakeExec) Resolve(ctx context.Context, args []string) error {
	return f.record("resolve", args)
}

// capturePrints replaces printlnFn and returns everything printed.
func capturePrints(t *testing.T) *[]string {
	t.Helper()
	var out []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		out = append(out, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &out
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	printed := capturePrints(t)

	input := strings.Join([]string{
		"help",
		"status",
		"use s1",
		"lots",
		"addlot Oak chest",
		"",
		"addphoto l1 /tmp/a.jpg primary",
		"resolve c1 cloud",
		"foobar",
		"sync",
		"exit",
		"pending",
	}, "\n")

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "(offline)" }, bufio.NewReader(strings.NewReader(input)))

	assert.Equal(t, []string{"status", "use", "lots", "addlot", "addphoto", "resolve", "sync"}, exec.calls)
	assert.Equal(t, []string{"s1"}, exec.args[1])
	assert.Equal(t, []string{"Oak", "chest"}, exec.args[3])
	assert.Equal(t, []string{"l1", "/tmp/a.jpg", "primary"}, exec.args[4])
	assert.Contains(t, *printed, "Unknown command: foobar")
	assert.Contains(t, *printed, "Bye!")
	assert.Contains(t, (*printed)[0], "Available commands")
}

func TestRunREPL_PrintsCommandErrors(t *testing.T) {
	printed := capturePrints(t)

	exec := &fakeExec{err: errors.New("remote store unreachable")}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader("sync\nquit\n")))

	assert.Equal(t, []string{"sync"}, exec.calls)
	assert.Contains(t, *printed, "Error: remote store unreachable")
}

func TestRunREPL_LastLineWithoutNewline(t *testing.T) {
	capturePrints(t)

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "" }, bufio.NewReader(strings.NewReader("sales\npending")))

	assert.Equal(t, []string{"sales", "pending"}, exec.calls)
}

func TestRunREPL_StopsWhenContextDone(t *testing.T) {
	capturePrints(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExec{}
	runREPL(ctx, exec, func() string { return "" }, bufio.NewReader(strings.NewReader("status\n")))

	assert.Empty(t, exec.calls)
}
