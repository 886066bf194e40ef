package command

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func readOutput(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(b)
}

// TestScenarioS1Filter mirrors spec.md scenario S1: filtering rows of
// a,b on `a > 1` keeps only the second row.
func TestScenarioS1Filter(t *testing.T) {
	dir := t.TempDir()
	in := writeTempCSV(t, dir, "in.csv", "a,b\n1,4\n5,2\n")
	out := filepath.Join(dir, "out.csv")

	if err := RunFilter([]string{"-o", out, "a > 1", in}); err != nil {
		t.Fatalf("RunFilter: %v", err)
	}
	got := readOutput(t, out)
	want := "a,b\n5,2\n"
	if got != want {
		t.Fatalf("S1: got %q, want %q", got, want)
	}
}

// TestScenarioS2MapPipeline mirrors spec.md scenario S2:
// name.split(".") | first | upper as k on "Acrimed.org" yields "ACRIMED".
func TestScenarioS2MapPipeline(t *testing.T) {
	dir := t.TempDir()
	in := writeTempCSV(t, dir, "in.csv", "name\nAcrimed.org\n")
	out := filepath.Join(dir, "out.csv")

	if err := RunMap([]string{"-o", out, `name.split(".") | first | upper`, "k", in}); err != nil {
		t.Fatalf("RunMap: %v", err)
	}
	got := readOutput(t, out)
	if !strings.Contains(got, "ACRIMED") {
		t.Fatalf("S2: got %q, want a row containing ACRIMED", got)
	}
	if !strings.HasPrefix(got, "name,k\n") {
		t.Fatalf("S2: expected appended column named 'k', got header line %q", strings.SplitN(got, "\n", 2)[0])
	}
}

// TestScenarioS2MapPipelineDecoratedName mirrors spec.md scenario S2's
// literal invocation: a single expr argument ending in `as name`, with
// no explicit second positional, supplies the output column name.
func TestScenarioS2MapPipelineDecoratedName(t *testing.T) {
	dir := t.TempDir()
	in := writeTempCSV(t, dir, "in.csv", "name\nAcrimed.org\n")
	out := filepath.Join(dir, "out.csv")

	if err := RunMap([]string{"-o", out, `name.split(".") | first | upper as k`, in}); err != nil {
		t.Fatalf("RunMap: %v", err)
	}
	got := readOutput(t, out)
	if !strings.HasPrefix(got, "name,k\n") {
		t.Fatalf("S2 decorated: expected appended column named 'k', got header line %q", strings.SplitN(got, "\n", 2)[0])
	}
	if !strings.Contains(got, "ACRIMED") {
		t.Fatalf("S2 decorated: got %q, want a row containing ACRIMED", got)
	}
}

// TestScenarioS2MapPipelineDecorationOverridden checks that an explicit
// trailing name argument wins over expr's own `as name` decoration.
func TestScenarioS2MapPipelineDecorationOverridden(t *testing.T) {
	dir := t.TempDir()
	in := writeTempCSV(t, dir, "in.csv", "name\nAcrimed.org\n")
	out := filepath.Join(dir, "out.csv")

	if err := RunMap([]string{"-o", out, `name.split(".") | first | upper as k`, "k2", in}); err != nil {
		t.Fatalf("RunMap: %v", err)
	}
	got := readOutput(t, out)
	if !strings.HasPrefix(got, "name,k2\n") {
		t.Fatalf("expected explicit name 'k2' to win, got header line %q", strings.SplitN(got, "\n", 2)[0])
	}
}

// TestSelectEvaluateAppendsNamedColumn covers `select -e`: an evaluated
// expression is appended with an explicit name, defaulting to its
// source text when undecorated.
func TestSelectEvaluateAppendsNamedColumn(t *testing.T) {
	dir := t.TempDir()
	in := writeTempCSV(t, dir, "in.csv", "a,b\n1,2\n3,4\n")
	out := filepath.Join(dir, "out.csv")

	if err := RunSelect([]string{"-o", out, "-e", "a + b as total", "a,b", in}); err != nil {
		t.Fatalf("RunSelect: %v", err)
	}
	got := readOutput(t, out)
	want := "a,b,total\n1,2,3\n3,4,7\n"
	if got != want {
		t.Fatalf("select -e: got %q, want %q", got, want)
	}
}

// TestSelectEvaluateDefaultNameIsExpressionText checks that an
// undecorated -e clause falls back to naming the column after its own
// source text.
func TestSelectEvaluateDefaultNameIsExpressionText(t *testing.T) {
	dir := t.TempDir()
	in := writeTempCSV(t, dir, "in.csv", "a,b\n1,2\n")
	out := filepath.Join(dir, "out.csv")

	if err := RunSelect([]string{"-o", out, "-e", "a + b", "a,b", in}); err != nil {
		t.Fatalf("RunSelect: %v", err)
	}
	got := readOutput(t, out)
	if !strings.HasPrefix(got, "a,b,a + b\n") {
		t.Fatalf("select -e default name: got header line %q", strings.SplitN(got, "\n", 2)[0])
	}
}

// TestScenarioS3Groupby mirrors spec.md scenario S3: grouping by a key
// column and summing another.
func TestScenarioS3Groupby(t *testing.T) {
	dir := t.TempDir()
	in := writeTempCSV(t, dir, "in.csv", "key,val\na,1\nb,2\na,3\nc,4\nb,5\n")
	out := filepath.Join(dir, "out.csv")

	if err := RunGroupby([]string{"-o", out, "key", "sum(val)", in}); err != nil {
		t.Fatalf("RunGroupby: %v", err)
	}
	got := readOutput(t, out)
	want := "key,sum\na,4\nb,7\nc,4\n"
	if got != want {
		t.Fatalf("S3: got %q, want %q", got, want)
	}
}

// TestScenarioS4InnerJoinDropsSharedKey mirrors spec.md scenario S4:
// an inner join drops the right side's shared key column by default.
func TestScenarioS4InnerJoinDropsSharedKey(t *testing.T) {
	dir := t.TempDir()
	left := writeTempCSV(t, dir, "left.csv", "id,name\n1,alice\n2,bob\n")
	right := writeTempCSV(t, dir, "right.csv", "id,age\n1,30\n3,40\n")
	out := filepath.Join(dir, "out.csv")

	if err := RunJoin([]string{"-o", out, "id", left, "id", right}); err != nil {
		t.Fatalf("RunJoin: %v", err)
	}
	got := readOutput(t, out)
	want := "id,name,age\n1,alice,30\n"
	if got != want {
		t.Fatalf("S4: got %q, want %q", got, want)
	}
}

// TestScenarioS5SortedDedup mirrors spec.md scenario S5: deduping an
// already key-sorted stream in O(1) memory.
func TestScenarioS5SortedDedup(t *testing.T) {
	dir := t.TempDir()
	in := writeTempCSV(t, dir, "in.csv", "k\na\na\nb\nb\nb\nc\n")
	out := filepath.Join(dir, "out.csv")

	if err := RunDedup([]string{"--sorted", "-o", out, "k", in}); err != nil {
		t.Fatalf("RunDedup: %v", err)
	}
	got := readOutput(t, out)
	want := "k\na\nb\nc\n"
	if got != want {
		t.Fatalf("S5: got %q, want %q", got, want)
	}
}

// TestScenarioS6RollingMeanWindow mirrors spec.md scenario S6: a
// rolling mean of window size 2 over 1,2,3,4.
func TestScenarioS6RollingMeanWindow(t *testing.T) {
	dir := t.TempDir()
	in := writeTempCSV(t, dir, "in.csv", "x\n1\n2\n3\n4\n")
	out := filepath.Join(dir, "out.csv")

	if err := RunWindow([]string{"--window-size", "2", "-o", out, "rolling_mean", "x", "rm", in}); err != nil {
		t.Fatalf("RunWindow: %v", err)
	}
	got := readOutput(t, out)
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	want := []string{"x,rm", "1,", "2,1.5", "3,2.5", "4,3.5"}
	if len(lines) != len(want) {
		t.Fatalf("S6: got %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("S6 line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}
