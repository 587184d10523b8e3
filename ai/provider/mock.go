package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

var mockHeaderLine = regexp.MustCompile(`^[A-Za-z0-9 &/\-]{2,40}:$`)

// mockDefaultHeaders are used when a writer prompt carries no STRICT FORMAT block
var mockDefaultHeaders = []string{"Introduction:", "Methods:", "Results:", "Conclusion:"}

// Mock is a deterministic offline backend. Responses depend only on the
// prompts: each carries an 8-hex tag derived from SHA-256(system + "\n" + user).
// The shape follows the step the system prompt asks for.
type Mock struct {
	mu    sync.Mutex
	calls int
}

// NewMock creates a mock backend
func NewMock() *Mock {
	return &Mock{}
}

// Calls returns how many generations were served
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Generate returns canned text shaped for research, diagram, reviewer or writer prompts
func (m *Mock) Generate(ctx context.Context, system, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	sum := sha256.Sum256([]byte(system + "\n" + user))
	tag := hex.EncodeToString(sum[:])[:8]
	sysLow := strings.ToLower(system)

	switch {
	case strings.Contains(sysLow, "extract and summarize theory") || strings.Contains(sysLow, "return format:"):
		return "Key Concepts:\n" +
			fmt.Sprintf("- Mock concept (%s)\n\n", tag) +
			"Variables & Units:\n" +
			"- V (volts), I (amps)\n\n" +
			"Equations/Models:\n" +
			"- V = I R\n\n" +
			"Procedure Requirements:\n" +
			"- Follow the manual steps provided.\n\n" +
			"Assumptions (explicitly stated in manual):\n" +
			"- None stated.\n\n" +
			"Missing Info / Clarifications Needed:\n" +
			"- Apparatus details\n", nil

	case strings.Contains(sysLow, "suggest helpful figures/plots/diagrams"):
		return fmt.Sprintf("Figure 1: Time-series plot (%s)\n", tag) +
			"Shows change over time.\n\n" +
			"Figure 2: Histogram\n" +
			"Shows distribution.\n\n" +
			"Figure 3: Box plot\n" +
			"Shows spread and outliers.\n", nil

	case strings.Contains(sysLow, "careful reviewer"):
		return strings.TrimSpace(strings.Replace(user, "REPORT TO REVIEW:", "REVISED REPORT:", -1)) +
			fmt.Sprintf("\n\n(Reviewed %s)", tag), nil
	}

	headers := mockHeadersFromSystem(system)
	if len(headers) == 0 {
		headers = mockDefaultHeaders
	}
	var b strings.Builder
	for _, h := range headers {
		b.WriteString(h)
		b.WriteString("\n")
		fmt.Fprintf(&b, "Mock content for %s (%s).\n\n", strings.TrimSuffix(h, ":"), tag)
	}
	return strings.TrimSpace(b.String()), nil
}

// mockHeadersFromSystem pulls the required headers out of a writer system
// prompt's STRICT FORMAT block, stopping at the rules. Without such a block
// every header-shaped line qualifies.
func mockHeadersFromSystem(system string) []string {
	lines := strings.Split(system, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	var candidates []string
	start := -1
	for i, ln := range lines {
		if strings.HasPrefix(strings.ToUpper(ln), "STRICT FORMAT") {
			start = i + 1
			break
		}
	}
	if start >= 0 {
		for _, ln := range lines[start:] {
			if ln == "" {
				continue
			}
			low := strings.ToLower(ln)
			if strings.HasPrefix(low, "rules:") || strings.HasPrefix(low, "general rules:") {
				break
			}
			candidates = append(candidates, ln)
		}
	} else {
		candidates = lines
	}

	var headers []string
	for _, ln := range candidates {
		if !mockHeaderLine.MatchString(ln) {
			continue
		}
		low := strings.ToLower(ln)
		if strings.Contains(low, "strict format") || low == "rules:" || low == "general rules:" {
			continue
		}
		headers = append(headers, ln)
	}
	return headers
}
