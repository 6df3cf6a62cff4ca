package driver

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/wippyai/canister-runtime/ledger"
	"github.com/wippyai/canister-runtime/runtime"
)

// Result pairs a planned entry point with its outcome.
type Result struct {
	Outcome *runtime.Outcome
	Entry   Entry
}

// Report aggregates a run.
type Report struct {
	Exports []string
	Results []Result
}

// Trapped returns how many invocations trapped.
func (r *Report) Trapped() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome.Trapped() {
			n++
		}
	}
	return n
}

// Find returns the outcome for export, or nil.
func (r *Report) Find(export string) *runtime.Outcome {
	for _, res := range r.Results {
		if res.Entry.Export == export {
			return res.Outcome
		}
	}
	return nil
}

// Hex renders bytes as space-separated lowercase pairs.
func Hex(b []byte) string {
	var sb strings.Builder
	for i, c := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", c)
	}
	return sb.String()
}

// Text renders bytes as best-effort UTF-8 with control characters shown
// as '.'.
func Text(b []byte) string {
	s := strings.ToValidUTF8(string(b), string(utf8.RuneError))
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return '.'
		}
		return r
	}, s)
}

// WriteExports prints the sorted export list.
func WriteExports(w io.Writer, exports []string) {
	sorted := append([]string(nil), exports...)
	sort.Strings(sorted)
	fmt.Fprintf(w, "Exports: %s\n", strings.Join(sorted, ", "))
}

// WriteResult prints one invocation section.
func WriteResult(w io.Writer, res Result) {
	out := res.Outcome
	fmt.Fprintf(w, "\nCalling %s...\n", res.Entry.Export)

	if out.Trapped() {
		fmt.Fprintf(w, "%s trapped: %s", res.Entry.Export, out.Trap.Message)
		if out.Trap.Malformed {
			fmt.Fprintf(w, " (%d raw bytes, not valid UTF-8)", out.Trap.RawLen)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintf(w, "Returned: %v\n", out.Results)
	}

	fmt.Fprintf(w, "Reply length: %d\n", len(out.Reply))
	if len(out.Reply) > 0 {
		fmt.Fprintf(w, "Reply hex: %s\n", Hex(out.Reply))
		fmt.Fprintf(w, "Reply text: %s\n", Text(out.Reply))
	}
	if out.Reject != nil {
		fmt.Fprintf(w, "Reject (%d): %s\n", out.Reject.Code, out.Reject.Message)
	}

	if len(out.Ledger) > 0 {
		fmt.Fprintln(w, "IC0 call log:")
		if out.Dropped > 0 {
			fmt.Fprintf(w, "  ... %d earlier calls dropped\n", out.Dropped)
		}
		io.WriteString(w, ledger.Format(out.Ledger, out.Dropped))
	}

	if !out.Trapped() {
		fmt.Fprintf(w, "%s ok (%s)\n", res.Entry.Export, out.Duration)
	}
}

// WriteSummary prints the closing line.
func WriteSummary(w io.Writer, r *Report) {
	if n := r.Trapped(); n > 0 {
		fmt.Fprintf(w, "\nDone with errors (%d of %d trapped)\n", n, len(r.Results))
		return
	}
	fmt.Fprintln(w, "\nDone")
}
