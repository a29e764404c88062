package targets

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one target as written in a YAML targets file:
//
//	targets:
//	  - url: https://example.com
//	    recipients: [ops@example.com, dev@example.com]
//	    owner: alice
//	    active: true
type Entry struct {
	URL        string        `yaml:"url"`
	Recipients RecipientList `yaml:"recipients"`
	Email      RecipientList `yaml:"email"`
	Owner      string        `yaml:"owner"`
	Active     *bool         `yaml:"active"`
	Status     string        `yaml:"status"`
}

// Config is the root of a YAML targets file. A bare top-level list of
// entries is accepted too.
type Config struct {
	Targets []Entry `yaml:"targets"`
}

// RecipientList accepts either a scalar ("a@x.com; b@x.com") or a sequence.
type RecipientList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *RecipientList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if s := strings.TrimSpace(node.Value); s != "" {
			*r = RecipientList{s}
		}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*r = list
		return nil
	default:
		return fmt.Errorf("line %d: recipients must be a string or a list", node.Line)
	}
}
