package patch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

// denyPatterns are jq constructs that must never reach the interpreter:
// anything that reads the environment, other inputs, or the filesystem, and
// anything that can abort or spam the process.
var denyPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"variable reference", regexp.MustCompile(`\$`)},
	{"interpolation backtick", regexp.MustCompile("`")},
	{"input builtin", regexp.MustCompile(`\binputs?\b`)},
	{"system access", regexp.MustCompile(`\b(?:system|env)\b`)},
	{"module directive", regexp.MustCompile(`\b(?:import|include|modulemeta)\b`)},
	{"debug builtin", regexp.MustCompile(`\bdebug\b`)},
	{"error builtin", regexp.MustCompile(`\berror\b`)},
	{"halt builtin", regexp.MustCompile(`\bhalt(?:_error)?\b`)},
	{"stream builtin", regexp.MustCompile(`\b(?:tostream|fromstream|truncate_stream)\b`)},
}

// allowedChars is the only character set a patch expression may use: word
// characters, brackets, braces, parens, dots, quotes, assignment, pipe,
// comma, colon, hyphen, and whitespace. Everything else (notably $, @, ;, \,
// arithmetic) is rejected up front.
var allowedChars = regexp.MustCompile(`^[\w\s\[\]{}().,:"'=|-]+$`)

// safeExpression reports whether expr passes the allowlist and denylist.
// The reason names the first violated rule for logging.
func safeExpression(expr string) (reason string, ok bool) {
	if strings.TrimSpace(expr) == "" {
		return "empty expression", false
	}
	if !allowedChars.MatchString(expr) {
		return "character outside allowlist", false
	}
	for _, deny := range denyPatterns {
		if deny.re.MatchString(expr) {
			return deny.name, false
		}
	}
	return "", true
}

// JQ evaluates a restricted jq expression by handing it to an external jq
// binary as an argument vector, never through a shell. The current document
// goes in on stdin; anything but a clean object on stdout voids the patch.
type JQ struct {
	bin     string
	timeout time.Duration
	logger  *zap.Logger
}

// NewJQ creates the subprocess-backed applier. bin defaults to "jq",
// timeout to 10s.
func NewJQ(bin string, timeout time.Duration, logger *zap.Logger) *JQ {
	if bin == "" {
		bin = "jq"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JQ{
		bin:     bin,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "jq_patch")),
	}
}

// Name implements Applier.
func (j *JQ) Name() string { return StrategyJQ }

// Apply implements Applier. The expression is screened before any process is
// spawned; screening failures void the patch regardless of jq being
// installed.
func (j *JQ) Apply(ctx context.Context, doc map[string]any, expr string) map[string]any {
	expr = strings.TrimSpace(expr)
	if reason, ok := safeExpression(expr); !ok {
		j.logger.Warn("jq expression rejected",
			zap.String("reason", reason),
			zap.String("expression", expr))
		return doc
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		j.logger.Warn("document marshal failed", zap.Error(err))
		return doc
	}

	out, err := j.run(ctx, expr, payload)
	if err != nil {
		j.logger.Warn("jq execution voided", zap.Error(err))
		return doc
	}

	var patched map[string]any
	if err := json.Unmarshal(out, &patched); err != nil {
		j.logger.Warn("jq output is not a JSON object", zap.Error(err))
		return doc
	}
	return patched
}

// run invokes the jq binary with the expression as a single argv element
// after the option terminator. Shell interpolation is structurally
// impossible here; keep it that way.
func (j *JQ) run(ctx context.Context, expr string, stdin []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, j.bin, "--", expr)
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, errors.New(msg)
		}
		return nil, err
	}
	return bytes.TrimSpace(stdout.Bytes()), nil
}
