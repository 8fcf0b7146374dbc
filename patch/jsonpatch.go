package patch

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Operation is one RFC 6902 instruction.
type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	From  string `json:"from,omitempty"`
	Value any    `json:"value,omitempty"`
}

// JSONPatch applies RFC 6902 operation batches in-process against a deep
// copy of the document. Operations are isolated: a disallowed or malformed
// operation is voided and logged while the rest of the batch still applies.
type JSONPatch struct {
	logger *zap.Logger
}

// NewJSONPatch creates the in-process applier.
func NewJSONPatch(logger *zap.Logger) *JSONPatch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONPatch{logger: logger.With(zap.String("component", "jsonpatch"))}
}

// Name implements Applier.
func (p *JSONPatch) Name() string { return StrategyJSONPatch }

// Apply implements Applier.
func (p *JSONPatch) Apply(_ context.Context, doc map[string]any, src string) map[string]any {
	ops, err := parseOperations(src)
	if err != nil {
		p.logger.Warn("patch source rejected", zap.Error(err))
		return doc
	}

	result := deepCopyMap(doc)
	for i, op := range ops {
		if err := p.applyOp(result, op); err != nil {
			p.logger.Warn("patch operation voided",
				zap.Int("index", i),
				zap.String("op", op.Op),
				zap.String("path", op.Path),
				zap.Error(err))
		}
	}
	return result
}

// parseOperations accepts an operation array or a single operation object.
func parseOperations(src string) ([]Operation, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("empty patch source")
	}

	var ops []Operation
	if err := json.Unmarshal([]byte(src), &ops); err == nil {
		if len(ops) == 0 {
			return nil, fmt.Errorf("empty operation array")
		}
		return ops, nil
	}

	var single Operation
	if err := json.Unmarshal([]byte(src), &single); err != nil {
		return nil, fmt.Errorf("patch source is not valid JSON: %w", err)
	}
	if single.Op == "" {
		return nil, fmt.Errorf("operation missing op field")
	}
	return []Operation{single}, nil
}

func (p *JSONPatch) applyOp(root map[string]any, op Operation) error {
	switch op.Op {
	case "add":
		return setAtPointer(root, op.Path, op.Value, true)
	case "replace":
		return setAtPointer(root, op.Path, op.Value, false)
	case "remove":
		return removeAtPointer(root, op.Path)
	case "move":
		if op.From == op.Path {
			return nil
		}
		if strings.HasPrefix(op.Path, op.From+"/") {
			return fmt.Errorf("cannot move %q into its own child %q", op.From, op.Path)
		}
		v, err := getAtPointer(root, op.From)
		if err != nil {
			return err
		}
		if err := removeAtPointer(root, op.From); err != nil {
			return err
		}
		return setAtPointer(root, op.Path, v, true)
	case "copy":
		v, err := getAtPointer(root, op.From)
		if err != nil {
			return err
		}
		return setAtPointer(root, op.Path, deepCopyValue(v), true)
	case "test":
		// a failed test is logged, never aborts the batch
		v, err := getAtPointer(root, op.Path)
		if err != nil || !reflect.DeepEqual(v, op.Value) {
			p.logger.Warn("test operation mismatch", zap.String("path", op.Path))
		}
		return nil
	}
	return fmt.Errorf("unknown op %q", op.Op)
}

func getAtPointer(root map[string]any, path string) (any, error) {
	segs, err := splitPointer(path)
	if err != nil {
		return nil, err
	}
	var cur any = root
	for _, seg := range segs {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("key %q not found", seg)
			}
			cur = v
		case []any:
			idx, err := arrayIndex(seg, len(node), false)
			if err != nil {
				return nil, err
			}
			cur = node[idx]
		default:
			return nil, fmt.Errorf("cannot traverse %s through segment %q", typeName(cur), seg)
		}
	}
	return cur, nil
}

func setAtPointer(root map[string]any, path string, value any, insert bool) error {
	segs, err := splitPointer(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return fmt.Errorf("replacing the document root is not supported")
	}
	_, err = setIn(root, segs, value, insert)
	return err
}

func removeAtPointer(root map[string]any, path string) error {
	segs, err := splitPointer(path)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		return fmt.Errorf("removing the document root is not supported")
	}
	_, err = removeIn(root, segs)
	return err
}

// setIn writes value at segs below node, creating intermediate containers as
// needed (array when the next segment is numeric or the append marker, object
// otherwise). The returned container replaces node in its parent; slices
// change identity when spliced.
func setIn(node any, segs []string, value any, insert bool) (any, error) {
	seg := segs[0]
	last := len(segs) == 1

	switch c := node.(type) {
	case map[string]any:
		if last {
			c[seg] = value
			return c, nil
		}
		child, ok := c[seg]
		if !ok || child == nil {
			child = newContainer(segs[1])
		}
		updated, err := setIn(child, segs[1:], value, insert)
		if err != nil {
			return nil, err
		}
		c[seg] = updated
		return c, nil

	case []any:
		if seg == "-" {
			if !last {
				return nil, fmt.Errorf("append marker must be the final segment")
			}
			return append(c, value), nil
		}
		idx, err := arrayIndex(seg, len(c), last && insert)
		if err != nil {
			return nil, err
		}
		if last {
			if insert {
				c = append(c, nil)
				copy(c[idx+1:], c[idx:])
				c[idx] = value
				return c, nil
			}
			if idx == len(c) {
				return append(c, value), nil
			}
			c[idx] = value
			return c, nil
		}
		child := c[idx]
		if child == nil {
			child = newContainer(segs[1])
		}
		updated, err := setIn(child, segs[1:], value, insert)
		if err != nil {
			return nil, err
		}
		c[idx] = updated
		return c, nil
	}
	return nil, fmt.Errorf("cannot traverse %s through segment %q", typeName(node), seg)
}

func removeIn(node any, segs []string) (any, error) {
	seg := segs[0]
	last := len(segs) == 1

	switch c := node.(type) {
	case map[string]any:
		child, ok := c[seg]
		if !ok {
			return nil, fmt.Errorf("key %q not found", seg)
		}
		if last {
			delete(c, seg)
			return c, nil
		}
		updated, err := removeIn(child, segs[1:])
		if err != nil {
			return nil, err
		}
		c[seg] = updated
		return c, nil

	case []any:
		idx, err := arrayIndex(seg, len(c), false)
		if err != nil {
			return nil, err
		}
		if last {
			return append(c[:idx], c[idx+1:]...), nil
		}
		updated, err := removeIn(c[idx], segs[1:])
		if err != nil {
			return nil, err
		}
		c[idx] = updated
		return c, nil
	}
	return nil, fmt.Errorf("cannot traverse %s through segment %q", typeName(node), seg)
}

// arrayIndex parses seg as an index into an array of length n. allowEnd
// permits idx == n (insertion at the tail).
func arrayIndex(seg string, n int, allowEnd bool) (int, error) {
	if !isIndexSegment(seg) {
		return 0, fmt.Errorf("segment %q is not an array index", seg)
	}
	idx, err := strconv.Atoi(seg)
	if err != nil {
		return 0, err
	}
	limit := n
	if allowEnd {
		limit = n + 1
	}
	if idx >= limit {
		return 0, fmt.Errorf("index %d out of range for array of %d", idx, n)
	}
	return idx, nil
}

func newContainer(nextSeg string) any {
	if isIndexSegment(nextSeg) || nextSeg == "-" {
		return []any{}
	}
	return map[string]any{}
}

func typeName(v any) string {
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case nil:
		return "null"
	}
	return fmt.Sprintf("%T", v)
}
