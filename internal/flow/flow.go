// Package flow defines the labeled directed graph a flow skill (or the
// Ralph loop) walks one user-turn at a time: begin/end/task/decision nodes
// connected by labeled edges, plus the <choice>...</choice> tag a decision
// node's reply is parsed against.
package flow

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gencode-ai/agentcore/internal/message"
)

// NodeKind is the closed set of roles a Node can play in a Flow.
type NodeKind string

const (
	KindBegin    NodeKind = "begin"
	KindEnd      NodeKind = "end"
	KindTask     NodeKind = "task"
	KindDecision NodeKind = "decision"
)

// Node is one point in a flow graph. Label is either plain text or
// structured content parts, matching the shape a user-turn prompt may take.
type Node struct {
	ID    string
	Label string
	Parts []message.ContentPart
	Kind  NodeKind
}

// LabelText returns the node's label as plain text, extracting it from Parts
// when the node was built with structured content.
func (n Node) LabelText() string {
	if len(n.Parts) > 0 {
		return message.Parts(n.Parts...).ExtractText(" ")
	}
	return n.Label
}

// Edge is one directed, optionally labeled transition between two nodes.
// Decision nodes require every outgoing edge to carry a unique, non-empty
// label; other node kinds' edges are unlabeled.
type Edge struct {
	Src   string
	Dst   string
	Label string
}

// Flow is a validated graph: exactly one begin node, exactly one end node
// reachable from it, and every decision node's outgoing edges carrying
// distinct non-empty labels.
type Flow struct {
	Nodes    map[string]Node
	Outgoing map[string][]Edge
	BeginID  string
	EndID    string
}

// New validates nodes/outgoing and constructs a Flow, or returns an error
// describing the first violation found.
func New(nodes map[string]Node, outgoing map[string][]Edge) (*Flow, error) {
	beginID, endID, err := validate(nodes, outgoing)
	if err != nil {
		return nil, err
	}
	return &Flow{Nodes: nodes, Outgoing: outgoing, BeginID: beginID, EndID: endID}, nil
}

func validate(nodes map[string]Node, outgoing map[string][]Edge) (beginID, endID string, err error) {
	var begins, ends []string
	for _, n := range nodes {
		switch n.Kind {
		case KindBegin:
			begins = append(begins, n.ID)
		case KindEnd:
			ends = append(ends, n.ID)
		}
	}
	if len(begins) != 1 {
		return "", "", fmt.Errorf("flow: expected exactly one begin node, found %d", len(begins))
	}
	if len(ends) != 1 {
		return "", "", fmt.Errorf("flow: expected exactly one end node, found %d", len(ends))
	}
	beginID, endID = begins[0], ends[0]

	reachable := map[string]bool{}
	queue := []string{beginID}
	for len(queue) > 0 {
		id := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if reachable[id] {
			continue
		}
		reachable[id] = true
		for _, e := range outgoing[id] {
			if !reachable[e.Dst] {
				queue = append(queue, e.Dst)
			}
		}
	}

	for _, n := range nodes {
		if !reachable[n.ID] {
			continue
		}
		edges := outgoing[n.ID]
		if n.Kind == KindDecision && len(edges) < 2 {
			return "", "", fmt.Errorf("flow: decision node %q has %d outgoing edge(s), want at least 2", n.ID, len(edges))
		}
		if len(edges) <= 1 {
			continue
		}
		seen := map[string]bool{}
		for _, e := range edges {
			if strings.TrimSpace(e.Label) == "" {
				return "", "", fmt.Errorf("flow: node %q has an unlabeled edge", n.ID)
			}
			if seen[e.Label] {
				return "", "", fmt.Errorf("flow: node %q has duplicate edge label %q", n.ID, e.Label)
			}
			seen[e.Label] = true
		}
	}

	if !reachable[endID] {
		return "", "", fmt.Errorf("flow: end node is not reachable from begin")
	}
	return beginID, endID, nil
}

var choiceTag = regexp.MustCompile(`<choice>([^<]*)</choice>`)

// ParseChoice extracts the last <choice>...</choice> tag's trimmed content
// from text, or "" if none is present.
func ParseChoice(text string) string {
	matches := choiceTag.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.TrimSpace(matches[len(matches)-1][1])
}
