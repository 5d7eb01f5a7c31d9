// Package cleanup provides ascii reporter
package cleanup

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pomeg-dev/nextpress-go/internal/infrastructure/caching/manager"
)

const (
	cyan        = "\033[38;2;86;182;194m"  // One Dark Cyan: #56B6C2
	cyanBright  = "\033[38;2;97;228;240m"  // Brighter Cyan: #61E4F0
	dimCyan     = "\033[38;2;47;91;102m"   // Dim Cyan: #2F5B66
	grey        = "\033[38;2;110;118;129m" // Brighter Grey: #6E7681
	dimGrey     = "\033[38;2;75;82;99m"    // Darker Grey: #4B5263
	success     = "\033[38;2;62;130;144m"  // Dim Cyan: #3E8290
	warning     = "\033[38;2;229;192;123m" // One Dark Yellow: #E5C07B
	white       = "\033[38;2;171;178;191m" // One Dark Foreground: #ABB2BF
	whiteBright = "\033[38;2;220;225;230m" // Brighter White
	purple      = "\033[38;2;198;120;221m" // One Dark Purple: #C678DD
	dimPurple   = "\033[38;2;142;87;158m"  // Dim Purple: #8E579E
	reset       = "\033[0m"
	bold        = "\033[1m"
)

type Reporter struct {
	out io.Writer
}

func NewReporter(out io.Writer) *Reporter {
	if out == nil {
		out = os.Stdout
	}
	return &Reporter{out: out}
}

func (r *Reporter) LogStage(message string, args ...any) {
	fmt.Fprintf(r.out, "%s%s✦ %s%s%s\n", success, bold, grey, fmt.Sprintf(message, args...), reset)
}

func (r *Reporter) LogSuccess(message string, args ...any) {
	fmt.Fprintf(r.out, "%s%s✦ %s%s%s\n", success, bold, white, fmt.Sprintf(message, args...), reset)
}

func (r *Reporter) LogWarning(message string, args ...any) {
	fmt.Fprintf(r.out, "%s%s⚠ WARNING: %s%s%s\n", bold, warning, grey, fmt.Sprintf(message, args...), reset)
}

func (r *Reporter) LogInfo(message string, args ...any) {
	fmt.Fprintf(r.out, "%s▶ %s%s%s\n", dimGrey, grey, fmt.Sprintf(message, args...), reset)
}

// GenerateCacheReport renders route cache counters and debounce state.
func (r *Reporter) GenerateCacheReport(stats manager.CacheStats, openWindows int) string {
	var report strings.Builder
	timestamp := time.Now().UTC().Format("2006-01-02 15:04:05 MST")

	report.WriteString(fmt.Sprintf("%s%s▓ %s | Route cache: %s%s%s\n", bold, dimCyan, timestamp, whiteBright, stats.Backend, reset))

	var countsLine strings.Builder
	countsLine.WriteString(fmt.Sprintf("%s✦ entries:%s", cyanBright, reset))
	if stats.Entries >= 0 {
		countsLine.WriteString(fmt.Sprintf(" %s%d%s", cyan, stats.Entries, reset))
	} else {
		countsLine.WriteString(fmt.Sprintf(" %s--%s", dimGrey, reset))
	}
	report.WriteString(countsLine.String() + "\n")

	formatItem := func(label string, count int64) string {
		if count > 0 {
			return fmt.Sprintf(" %s%s:%s%d", dimPurple, label, white, count)
		}
		return fmt.Sprintf(" %s%s:%s--", dimGrey, label, dimGrey)
	}

	var activityLine strings.Builder
	activityLine.WriteString(fmt.Sprintf("%s✦ activity:%s", purple, reset))
	activityLine.WriteString(formatItem("hits", stats.Hits))
	activityLine.WriteString(formatItem("misses", stats.Misses))
	activityLine.WriteString(formatItem("writes", stats.Writes))
	activityLine.WriteString(formatItem("evictions", stats.Evictions))
	activityLine.WriteString(formatItem("debounce-windows", int64(openWindows)))
	report.WriteString(activityLine.String() + reset + "\n")

	return report.String()
}
