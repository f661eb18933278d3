package policy

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Feature indexes into the policy inputs.
type Feature string

const (
	FeatureStorage  Feature = "storage"
	FeatureWaterDay Feature = "water_day"
)

func (f Features) value(feature Feature) (float64, bool) {
	switch feature {
	case FeatureStorage:
		return f.Storage, true
	case FeatureWaterDay:
		return float64(f.WaterDay), true
	}
	return 0, false
}

// Node is either a split (Feature, Threshold, Left, Right) or a leaf (Action).
// A split sends features below the threshold left and everything else right.
type Node struct {
	Feature   Feature `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      *Node   `json:"left,omitempty"`
	Right     *Node   `json:"right,omitempty"`
	Action    *Rule   `json:"action,omitempty"`
}

func (n *Node) leaf() bool { return n.Action != nil }

// Tree is a binary rule tree over storage and water-year day.
type Tree struct {
	Name string `json:"name"`
	Root *Node  `json:"root"`
}

// Leaf returns a terminal node selecting r.
func Leaf(r Rule) *Node { return &Node{Action: &r} }

// Split returns a node that sends values of feature below threshold to left.
func Split(feature Feature, threshold float64, left, right *Node) *Node {
	return &Node{Feature: feature, Threshold: threshold, Left: left, Right: right}
}

// Evaluate walks the tree to a leaf. Validate must have succeeded.
func (t *Tree) Evaluate(f Features) Rule {
	n := t.Root
	for !n.leaf() {
		v, _ := f.value(n.Feature)
		if v < n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return *n.Action
}

// Validate checks that every node is a well-formed split or leaf.
func (t *Tree) Validate() error {
	if t.Root == nil {
		return fmt.Errorf("policy tree %q: missing root", t.Name)
	}
	return validateNode(t.Root, "root")
}

func validateNode(n *Node, path string) error {
	if n == nil {
		return fmt.Errorf("policy tree: %s: missing node", path)
	}
	if n.leaf() {
		if n.Left != nil || n.Right != nil || n.Feature != "" {
			return fmt.Errorf("policy tree: %s: leaf has split fields", path)
		}
		if !n.Action.Valid() {
			return fmt.Errorf("policy tree: %s: %w: %d", path, ErrUnknownRule, uint8(*n.Action))
		}
		return nil
	}
	if _, ok := (Features{}).value(n.Feature); !ok {
		return fmt.Errorf("policy tree: %s: unknown feature %q", path, n.Feature)
	}
	if err := validateNode(n.Left, path+".left"); err != nil {
		return err
	}
	return validateNode(n.Right, path+".right")
}

// Rules returns the distinct rules reachable from the root, in depth-first order.
func (t *Tree) Rules() []Rule {
	seen := make(map[Rule]bool)
	var out []Rule
	var walk func(n *Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.leaf() {
			if !seen[*n.Action] {
				seen[*n.Action] = true
				out = append(out, *n.Action)
			}
			return
		}
		walk(n.Left)
		walk(n.Right)
	}
	walk(t.Root)
	return out
}

// DecodeTree reads a JSON policy tree and validates it.
func DecodeTree(r io.Reader) (*Tree, error) {
	var t Tree
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode policy tree: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadTree reads a JSON policy tree from a file. The file name is used when the
// tree does not carry a name.
func LoadTree(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := DecodeTree(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if t.Name == "" {
		t.Name = path
	}
	return t, nil
}
